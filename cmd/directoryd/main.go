// Command directoryd is an in-memory key directory for local development
// and end-to-end exercising of the cgraph client. It implements the
// collaborator contract the client expects: bundle registration, prekey
// upload and counting, bundle fetch with server-side one-time prekey
// consumption, device listing and revocation, and per-user mailboxes.
//
// State lives in memory only. Not for production.
package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"cgraph/internal/domain"
)

type deviceRecord struct {
	bundle    domain.RegistrationBundle
	prekeys   []domain.WireOneTimePreKey
	createdAt time.Time
}

type memoryDirectory struct {
	mu        sync.Mutex
	devices   map[domain.DeviceID]*deviceRecord
	byUser    map[domain.UserID][]domain.DeviceID
	mailboxes map[domain.UserID][]domain.Envelope
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{
		devices:   make(map[domain.DeviceID]*deviceRecord),
		byUser:    make(map[domain.UserID][]domain.DeviceID),
		mailboxes: make(map[domain.UserID][]domain.Envelope),
	}
}

func (d *memoryDirectory) register(b domain.RegistrationBundle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.devices[b.DeviceID]; !exists {
		d.byUser[b.UserID] = append(d.byUser[b.UserID], b.DeviceID)
	}
	prekeys := b.OneTimePreKeys
	b.OneTimePreKeys = nil
	d.devices[b.DeviceID] = &deviceRecord{
		bundle:    b,
		prekeys:   prekeys,
		createdAt: time.Now(),
	}
}

// fetchBundle serves the latest device bundle for a user, detaching one
// one-time prekey. The detached key is marked consumed here, before the
// response leaves: it will never be issued again.
func (d *memoryDirectory) fetchBundle(user domain.UserID) (domain.ServerPreKeyBundle, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids := d.byUser[user]
	if len(ids) == 0 {
		return domain.ServerPreKeyBundle{}, false
	}
	rec := d.devices[ids[len(ids)-1]]
	if rec == nil {
		return domain.ServerPreKeyBundle{}, false
	}

	out := domain.ServerPreKeyBundle{
		UserID:        rec.bundle.UserID,
		DeviceID:      rec.bundle.DeviceID,
		IdentityKey:   rec.bundle.IdentityKey,
		IdentityKeyID: rec.bundle.IdentityKeyID,
		SigningKey:    rec.bundle.SigningKey,
		SignedPreKey:  rec.bundle.SignedPreKey,
	}
	if len(rec.prekeys) > 0 {
		opk := rec.prekeys[0]
		rec.prekeys = rec.prekeys[1:]
		out.OneTimePreKey = &opk
	}
	return out, true
}

func (d *memoryDirectory) uploadPreKeys(device domain.DeviceID, keys []domain.WireOneTimePreKey) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec := d.devices[device]
	if rec == nil {
		return 0, false
	}
	seen := make(map[domain.KeyID]bool, len(rec.prekeys))
	for _, k := range rec.prekeys {
		seen[k.KeyID] = true
	}
	accepted := 0
	for _, k := range keys {
		if k.KeyID == "" || len(k.PublicKey) != 32 || seen[k.KeyID] {
			continue
		}
		rec.prekeys = append(rec.prekeys, k)
		seen[k.KeyID] = true
		accepted++
	}
	return accepted, true
}

func (d *memoryDirectory) prekeyCount(device domain.DeviceID) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec := d.devices[device]
	if rec == nil {
		return 0, false
	}
	return len(rec.prekeys), true
}

func (d *memoryDirectory) listDevices(user domain.UserID) []domain.DeviceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]domain.DeviceInfo, 0, len(d.byUser[user]))
	for _, id := range d.byUser[user] {
		if rec := d.devices[id]; rec != nil {
			out = append(out, domain.DeviceInfo{DeviceID: id, CreatedAt: rec.createdAt})
		}
	}
	return out
}

func (d *memoryDirectory) revoke(device domain.DeviceID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.devices[device]
	if !ok {
		return false
	}
	delete(d.devices, device)
	user := rec.bundle.UserID
	ids := d.byUser[user][:0]
	for _, id := range d.byUser[user] {
		if id != device {
			ids = append(ids, id)
		}
	}
	d.byUser[user] = ids
	return true
}

func (d *memoryDirectory) push(env domain.Envelope) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mailboxes[env.To] = append(d.mailboxes[env.To], env)
}

func (d *memoryDirectory) fetchMail(user domain.UserID, limit int) []domain.Envelope {
	d.mu.Lock()
	defer d.mu.Unlock()

	box := d.mailboxes[user]
	if limit > 0 && limit < len(box) {
		box = box[:limit]
	}
	return append([]domain.Envelope(nil), box...)
}

func (d *memoryDirectory) ackMail(user domain.UserID, count int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	box := d.mailboxes[user]
	if count > len(box) {
		count = len(box)
	}
	d.mailboxes[user] = box[count:]
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	dir := newMemoryDirectory()

	r := chi.NewRouter()

	r.Post("/v1/bundles", func(w http.ResponseWriter, req *http.Request) {
		var b domain.RegistrationBundle
		if err := json.NewDecoder(req.Body).Decode(&b); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if b.UserID == "" || b.DeviceID == "" || len(b.IdentityKey) != 32 {
			http.Error(w, "invalid bundle", http.StatusBadRequest)
			return
		}
		dir.register(b)
		log.Info().Str("user", b.UserID.String()).Str("device", b.DeviceID.String()).
			Int("prekeys", len(b.OneTimePreKeys)).Msg("bundle registered")
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/v1/bundles/{user}", func(w http.ResponseWriter, req *http.Request) {
		user := domain.UserID(chi.URLParam(req, "user"))
		b, ok := dir.fetchBundle(user)
		if !ok {
			http.Error(w, "unknown user", http.StatusNotFound)
			return
		}
		writeJSON(w, b)
	})

	r.Post("/v1/devices/{device}/prekeys", func(w http.ResponseWriter, req *http.Request) {
		device := domain.DeviceID(chi.URLParam(req, "device"))
		var in struct {
			PreKeys []domain.WireOneTimePreKey `json:"prekeys"`
		}
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		accepted, ok := dir.uploadPreKeys(device, in.PreKeys)
		if !ok {
			http.Error(w, "unknown device", http.StatusNotFound)
			return
		}
		writeJSON(w, struct {
			Accepted int `json:"accepted"`
		}{Accepted: accepted})
	})

	r.Get("/v1/devices/{device}/prekeys/count", func(w http.ResponseWriter, req *http.Request) {
		device := domain.DeviceID(chi.URLParam(req, "device"))
		count, ok := dir.prekeyCount(device)
		if !ok {
			http.Error(w, "unknown device", http.StatusNotFound)
			return
		}
		writeJSON(w, struct {
			Count int `json:"count"`
		}{Count: count})
	})

	r.Get("/v1/users/{user}/devices", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, dir.listDevices(domain.UserID(chi.URLParam(req, "user"))))
	})

	r.Delete("/v1/devices/{device}", func(w http.ResponseWriter, req *http.Request) {
		if !dir.revoke(domain.DeviceID(chi.URLParam(req, "device"))) {
			http.Error(w, "unknown device", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Post("/v1/messages/{user}", func(w http.ResponseWriter, req *http.Request) {
		var env domain.Envelope
		if err := json.NewDecoder(req.Body).Decode(&env); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		env.To = domain.UserID(chi.URLParam(req, "user"))
		dir.push(env)
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/v1/messages/{user}", func(w http.ResponseWriter, req *http.Request) {
		user := domain.UserID(chi.URLParam(req, "user"))
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		writeJSON(w, dir.fetchMail(user, limit))
	})

	r.Post("/v1/messages/{user}/ack", func(w http.ResponseWriter, req *http.Request) {
		user := domain.UserID(chi.URLParam(req, "user"))
		var in struct {
			Count int `json:"count"`
		}
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		dir.ackMail(user, in.Count)
		w.WriteHeader(http.StatusOK)
	})

	log.Info().Str("addr", *addr).Msg("directoryd listening")
	if err := http.ListenAndServe(*addr, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
