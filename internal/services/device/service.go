// Package device manages the multi-device lifecycle: listing, revoking,
// and keeping the directory's one-time prekey pool topped up.
package device

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"cgraph/internal/domain"
	"cgraph/internal/services/bundle"
	"cgraph/internal/store"
)

// Replenishment watermarks and cadence.
const (
	DefaultLowWater      = 20
	DefaultHighWater     = bundle.DefaultOneTimePreKeyCount
	DefaultCheckInterval = 5 * time.Minute
)

// Service drives device lifecycle operations for one local device.
type Service struct {
	keys *store.KeyStore
	dir  domain.DirectoryClient
	log  zerolog.Logger

	lowWater  int
	highWater int
	interval  time.Duration

	// replenishMu makes top-ups single-flight: overlapping timer ticks
	// and foreground triggers collapse into one.
	replenishMu sync.Mutex

	trigger chan struct{}
}

// Option adjusts a Service.
type Option func(*Service)

// WithWatermarks overrides the replenishment low/high watermarks.
func WithWatermarks(low, high int) Option {
	return func(s *Service) {
		s.lowWater = low
		s.highWater = high
	}
}

// WithCheckInterval overrides the periodic replenishment cadence.
func WithCheckInterval(d time.Duration) Option {
	return func(s *Service) { s.interval = d }
}

// New constructs a device lifecycle service.
func New(keys *store.KeyStore, dir domain.DirectoryClient, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		keys:      keys,
		dir:       dir,
		log:       log,
		lowWater:  DefaultLowWater,
		highWater: DefaultHighWater,
		interval:  DefaultCheckInterval,
		trigger:   make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ListDevices returns the user's registered devices.
func (s *Service) ListDevices(ctx context.Context, userID domain.UserID) ([]domain.DeviceInfo, error) {
	devices, err := s.dir.ListDevices(ctx, userID)
	if err != nil {
		return nil, &domain.RevocationError{Err: err}
	}
	return devices, nil
}

// RevokeDevice deletes a device's published keys. Revoking the active
// device also wipes the local store, flipping the device back to
// not-initialized.
func (s *Service) RevokeDevice(ctx context.Context, deviceID domain.DeviceID) error {
	if err := s.dir.RevokeDevice(ctx, deviceID); err != nil {
		return &domain.RevocationError{Err: err}
	}

	local, ok, err := s.keys.Load()
	if err != nil {
		return err
	}
	if ok && local.DeviceID == deviceID {
		if err := s.keys.Clear(); err != nil {
			return err
		}
		s.log.Info().Str("device_id", deviceID.String()).Msg("active device revoked, local store cleared")
	}
	return nil
}

// Replenish checks the directory's remaining one-time prekey count and,
// below the low-water mark, generates and uploads enough keys to reach
// the high-water mark. Single-flight: a call that finds a top-up already
// running returns immediately without blocking sends.
func (s *Service) Replenish(ctx context.Context) error {
	if !s.replenishMu.TryLock() {
		return nil
	}
	defer s.replenishMu.Unlock()

	local, ok, err := s.keys.Load()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotInitialized
	}

	remaining, err := s.dir.RemainingPreKeyCount(ctx, local.DeviceID)
	if err != nil {
		return err
	}
	if remaining >= s.lowWater {
		return nil
	}

	need := s.highWater - remaining
	pairs, err := bundle.GenerateOneTimePreKeys(need)
	if err != nil {
		return err
	}

	// Persist the private halves before uploading the publics; the other
	// order could hand out a prekey we cannot complete an exchange with.
	if err := s.keys.AddOneTimePreKeys(pairs); err != nil {
		return err
	}
	accepted, err := s.dir.UploadPreKeys(ctx, local.DeviceID, bundle.FormatPreKeysForUpload(pairs))
	if err != nil {
		return err
	}

	s.log.Info().
		Int("remaining", remaining).
		Int("uploaded", len(pairs)).
		Int("accepted", accepted).
		Msg("replenished one-time prekeys")
	return nil
}

// Trigger requests an immediate replenishment check from a running loop
// (app foreground, post-send). Never blocks.
func (s *Service) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run executes the periodic replenishment loop until ctx is cancelled.
// Cancel it on logout before clearing the store so the loop never
// operates on torn-down state.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.trigger:
		}
		if err := s.Replenish(ctx); err != nil {
			s.log.Warn().Err(err).Msg("prekey replenishment failed")
		}
	}
}
