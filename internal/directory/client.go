package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"cgraph/internal/domain"
)

const (
	defaultMaxAttempts = 3
	backoffBase        = 200 * time.Millisecond
	backoffMax         = 5 * time.Second
)

// Client talks JSON over HTTP to the key directory.
type Client struct {
	base        string
	http        *http.Client
	log         zerolog.Logger
	maxAttempts int
}

// NewClient returns a directory client for the given base URL. A nil
// httpClient falls back to http.DefaultClient.
func NewClient(base string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		base:        base,
		http:        httpClient,
		log:         log,
		maxAttempts: defaultMaxAttempts,
	}
}

// RegisterBundle publishes the device's public bundle.
func (c *Client) RegisterBundle(ctx context.Context, bundle domain.RegistrationBundle) error {
	return c.do(ctx, http.MethodPost, "/v1/bundles", bundle, nil)
}

// UploadPreKeys adds replenishment one-time prekeys for a device and
// returns how many the directory accepted.
func (c *Client) UploadPreKeys(ctx context.Context, deviceID domain.DeviceID, prekeys []domain.WireOneTimePreKey) (int, error) {
	in := struct {
		PreKeys []domain.WireOneTimePreKey `json:"prekeys"`
	}{PreKeys: prekeys}
	var out struct {
		Accepted int `json:"accepted"`
	}
	path := "/v1/devices/" + url.PathEscape(deviceID.String()) + "/prekeys"
	if err := c.do(ctx, http.MethodPost, path, in, &out); err != nil {
		return 0, err
	}
	return out.Accepted, nil
}

// RemainingPreKeyCount reads how many one-time prekeys the directory can
// still issue for this device.
func (c *Client) RemainingPreKeyCount(ctx context.Context, deviceID domain.DeviceID) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	path := "/v1/devices/" + url.PathEscape(deviceID.String()) + "/prekeys/count"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// FetchBundle retrieves a recipient's bundle. Any one-time prekey in the
// response has already been marked consumed server-side.
func (c *Client) FetchBundle(ctx context.Context, userID domain.UserID) (domain.ServerPreKeyBundle, error) {
	var out domain.ServerPreKeyBundle
	path := "/v1/bundles/" + url.PathEscape(userID.String())
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return domain.ServerPreKeyBundle{}, err
	}
	if err := out.Validate(); err != nil {
		return domain.ServerPreKeyBundle{}, &domain.DirectoryError{Op: "fetch bundle", Err: err}
	}
	return out, nil
}

// ListDevices returns the user's registered devices.
func (c *Client) ListDevices(ctx context.Context, userID domain.UserID) ([]domain.DeviceInfo, error) {
	var out []domain.DeviceInfo
	path := "/v1/users/" + url.PathEscape(userID.String()) + "/devices"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RevokeDevice deletes a device's published keys.
func (c *Client) RevokeDevice(ctx context.Context, deviceID domain.DeviceID) error {
	path := "/v1/devices/" + url.PathEscape(deviceID.String())
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// SendEnvelope posts an encrypted envelope to the recipient's mailbox.
func (c *Client) SendEnvelope(ctx context.Context, env domain.Envelope) error {
	path := "/v1/messages/" + url.PathEscape(env.To.String())
	return c.do(ctx, http.MethodPost, path, env, nil)
}

// FetchEnvelopes reads pending envelopes without removing them.
func (c *Client) FetchEnvelopes(ctx context.Context, userID domain.UserID, limit int) ([]domain.Envelope, error) {
	path := "/v1/messages/" + url.PathEscape(userID.String())
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []domain.Envelope
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AckEnvelopes removes the first count envelopes from the mailbox.
func (c *Client) AckEnvelopes(ctx context.Context, userID domain.UserID, count int) error {
	path := "/v1/messages/" + url.PathEscape(userID.String()) + "/ack"
	return c.do(ctx, http.MethodPost, path, struct {
		Count int `json:"count"`
	}{Count: count}, nil)
}

// do runs one JSON request with bounded retries. Transport errors and
// 5xx responses back off and retry; any 4xx is surfaced immediately as
// non-retryable.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	op := method + " " + path

	var lastErr *domain.DirectoryError
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			c.log.Warn().
				Str("op", op).
				Int("attempt", attempt+1).
				Dur("backoff", delay).
				Msg("retrying directory call")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &domain.DirectoryError{Op: op, Err: ctx.Err()}
			}
		}

		err := c.once(ctx, method, path, in, out)
		if err == nil {
			return nil
		}
		de, _ := err.(*domain.DirectoryError)
		if de == nil || !de.Retryable {
			return err
		}
		lastErr = de
		if ctx.Err() != nil {
			return de
		}
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, method, path string, in, out any) error {
	op := method + " " + path

	var body *bytes.Buffer
	if in != nil {
		body = new(bytes.Buffer)
		if err := json.NewEncoder(body).Encode(in); err != nil {
			return &domain.DirectoryError{Op: op, Err: err}
		}
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.base+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.base+path, nil)
	}
	if err != nil {
		return &domain.DirectoryError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.DirectoryError{Op: op, Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode/100 == 2:
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return &domain.DirectoryError{Op: op, Err: err}
			}
		}
		return nil
	case resp.StatusCode/100 == 5:
		return &domain.DirectoryError{Op: op, Status: resp.StatusCode, Retryable: true}
	default:
		return &domain.DirectoryError{Op: op, Status: resp.StatusCode}
	}
}

func backoffDelay(attempt int) time.Duration {
	d := backoffBase * time.Duration(1<<uint(attempt-1))
	if d > backoffMax {
		d = backoffMax
	}
	return d
}

// Compile-time assertions for the collaborator interfaces.
var (
	_ domain.DirectoryClient = (*Client)(nil)
	_ domain.Mailbox         = (*Client)(nil)
)
