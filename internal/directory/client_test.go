package directory_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"cgraph/internal/directory"
	"cgraph/internal/domain"
)

func newClient(t *testing.T, h http.Handler) (*directory.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return directory.NewClient(srv.URL, srv.Client(), zerolog.Nop()), srv
}

func TestClient_RegisterBundle(t *testing.T) {
	var got domain.RegistrationBundle
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/bundles" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))

	in := domain.RegistrationBundle{UserID: "alice", DeviceID: "dev-1", IdentityKey: make([]byte, 32)}
	if err := c.RegisterBundle(context.Background(), in); err != nil {
		t.Fatalf("RegisterBundle: %v", err)
	}
	if got.UserID != "alice" || got.DeviceID != "dev-1" {
		t.Fatalf("server saw %+v", got)
	}
}

func TestClient_UploadPreKeysReturnsAccepted(t *testing.T) {
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			PreKeys []domain.WireOneTimePreKey `json:"prekeys"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"accepted": len(in.PreKeys) - 1})
	}))

	keys := []domain.WireOneTimePreKey{
		{KeyID: "a", PublicKey: make([]byte, 32)},
		{KeyID: "b", PublicKey: make([]byte, 32)},
	}
	accepted, err := c.UploadPreKeys(context.Background(), "dev-1", keys)
	if err != nil {
		t.Fatalf("UploadPreKeys: %v", err)
	}
	if accepted != 1 {
		t.Fatalf("accepted = %d, want 1", accepted)
	}
}

func TestClient_RemainingPreKeyCount(t *testing.T) {
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/devices/dev-1/prekeys/count" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"count": 17})
	}))

	n, err := c.RemainingPreKeyCount(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("RemainingPreKeyCount: %v", err)
	}
	if n != 17 {
		t.Fatalf("count = %d, want 17", n)
	}
}

func TestClient_FetchBundleValidates(t *testing.T) {
	// Server returns a structurally broken bundle; the client must reject
	// it before it ever reaches the agreement engine.
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.ServerPreKeyBundle{
			UserID:      "bob",
			IdentityKey: []byte{1, 2, 3},
		})
	}))

	_, err := c.FetchBundle(context.Background(), "bob")
	var de *domain.DirectoryError
	if !errors.As(err, &de) {
		t.Fatalf("got %v, want DirectoryError", err)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"count": 5})
	}))

	n, err := c.RemainingPreKeyCount(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("RemainingPreKeyCount after retries: %v", err)
	}
	if n != 5 || calls.Load() != 3 {
		t.Fatalf("count=%d calls=%d, want count=5 calls=3", n, calls.Load())
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown user", http.StatusNotFound)
	}))

	_, err := c.FetchBundle(context.Background(), "nobody")
	var de *domain.DirectoryError
	if !errors.As(err, &de) {
		t.Fatalf("got %v, want DirectoryError", err)
	}
	if de.Retryable {
		t.Fatal("404 marked retryable")
	}
	if calls.Load() != 1 {
		t.Fatalf("%d calls, want 1 (no retry on 4xx)", calls.Load())
	}
}

func TestClient_MailboxRoundTrip(t *testing.T) {
	var box []domain.Envelope
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/messages/bob", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var env domain.Envelope
			if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			box = append(box, env)
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(box)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/v1/messages/bob/ack", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var in struct {
			Count int `json:"count"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		box = box[in.Count:]
	})

	c, _ := newClient(t, mux)
	ctx := context.Background()

	env := domain.Envelope{From: "alice", To: "bob", Message: domain.EncryptedMessage{Ciphertext: []byte{1}}}
	if err := c.SendEnvelope(ctx, env); err != nil {
		t.Fatalf("SendEnvelope: %v", err)
	}
	got, err := c.FetchEnvelopes(ctx, "bob", 0)
	if err != nil {
		t.Fatalf("FetchEnvelopes: %v", err)
	}
	if len(got) != 1 || got[0].From != "alice" {
		t.Fatalf("fetched %+v", got)
	}
	if err := c.AckEnvelopes(ctx, "bob", 1); err != nil {
		t.Fatalf("AckEnvelopes: %v", err)
	}
	if len(box) != 0 {
		t.Fatalf("mailbox has %d envelopes after ack, want 0", len(box))
	}
}
