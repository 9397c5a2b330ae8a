package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"cgraph/internal/domain"
)

// Storage record keys.
const (
	bundleRecord = "key_bundle"
	opkRecord    = "one_time_prekeys"
)

// localRecord is the persistent device state: identity pair, signed
// prekey pair and signature, and the device id.
type localRecord struct {
	DeviceID     domain.DeviceID         `json:"device_id"`
	Identity     domain.IdentityKeyPair  `json:"identity"`
	SignedPreKey domain.SignedPreKeyPair `json:"signed_prekey"`
}

type opkEntry struct {
	Priv domain.X25519Private `json:"priv"`
	Pub  domain.X25519Public  `json:"pub"`
}

// KeyStore persists the device's key bundle in secure storage.
//
// The identity/signed-prekey record and the one-time private keys are
// separate storage records: the directory alone tracks which one-time
// ids remain issuable, while the device keeps the private halves it
// needs to complete incoming exchanges, deleting each on first use.
type KeyStore struct {
	storage domain.SecureStorage
	mu      sync.Mutex
}

// NewKeyStore wraps the given secure storage.
func NewKeyStore(storage domain.SecureStorage) *KeyStore {
	return &KeyStore{storage: storage}
}

// Save persists a freshly generated bundle. It refuses to overwrite an
// existing record: silently replacing the bundle would make every
// message encrypted against the old one undecryptable.
func (s *KeyStore) Save(bundle domain.KeyBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok, err := s.storage.Get(bundleRecord); err != nil {
		return &domain.SetupError{Err: err}
	} else if ok {
		return domain.ErrAlreadyInitialized
	}

	opks := make(map[domain.KeyID]opkEntry, len(bundle.OneTimePreKeys))
	for _, p := range bundle.OneTimePreKeys {
		opks[p.ID] = opkEntry{Priv: p.Priv, Pub: p.Pub}
	}
	rec := localRecord{
		DeviceID:     bundle.DeviceID,
		Identity:     bundle.Identity,
		SignedPreKey: bundle.SignedPreKey,
	}

	// Write the prekeys first so a failure leaves no main record behind;
	// setup is all-or-nothing keyed off bundleRecord's existence.
	if err := s.setJSON(opkRecord, opks); err != nil {
		_ = s.storage.Delete(opkRecord)
		return &domain.SetupError{Err: err}
	}
	if err := s.setJSON(bundleRecord, rec); err != nil {
		_ = s.storage.Delete(opkRecord)
		return &domain.SetupError{Err: err}
	}
	return nil
}

// Load returns the persisted bundle record. Absence is reported via ok,
// not an error.
func (s *KeyStore) Load() (bundle domain.KeyBundle, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec localRecord
	ok, err = s.getJSON(bundleRecord, &rec)
	if err != nil || !ok {
		return domain.KeyBundle{}, ok, err
	}
	return domain.KeyBundle{
		DeviceID:     rec.DeviceID,
		Identity:     rec.Identity,
		SignedPreKey: rec.SignedPreKey,
	}, true, nil
}

// IsInitialized reports whether a bundle record exists.
func (s *KeyStore) IsInitialized() (bool, error) {
	_, ok, err := s.Load()
	return ok, err
}

// AddOneTimePreKeys merges replenishment pairs into the local record.
// Privates must be persisted before their publics are uploaded, or a
// message referencing one could arrive undecryptable.
func (s *KeyStore) AddOneTimePreKeys(pairs []domain.OneTimePreKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	opks := make(map[domain.KeyID]opkEntry)
	if _, err := s.getJSON(opkRecord, &opks); err != nil {
		return err
	}
	for _, p := range pairs {
		opks[p.ID] = opkEntry{Priv: p.Priv, Pub: p.Pub}
	}
	return s.setJSON(opkRecord, opks)
}

// ConsumeOneTimePreKey removes and returns the private key for id. Once
// consumed an id can never be used again; a repeat lookup reports
// ok=false.
func (s *KeyStore) ConsumeOneTimePreKey(id domain.KeyID) (priv domain.X25519Private, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opks := make(map[domain.KeyID]opkEntry)
	if _, err = s.getJSON(opkRecord, &opks); err != nil {
		return priv, false, err
	}
	entry, ok := opks[id]
	if !ok {
		return priv, false, nil
	}
	delete(opks, id)
	if err = s.setJSON(opkRecord, opks); err != nil {
		return priv, false, err
	}
	return entry.Priv, true, nil
}

// ListOneTimePreKeyPublics exposes only the public halves of the
// unconsumed one-time prekeys, for bundling and upload.
func (s *KeyStore) ListOneTimePreKeyPublics() ([]domain.WireOneTimePreKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opks := make(map[domain.KeyID]opkEntry)
	if _, err := s.getJSON(opkRecord, &opks); err != nil {
		return nil, err
	}
	out := make([]domain.WireOneTimePreKey, 0, len(opks))
	for id, e := range opks {
		out = append(out, domain.WireOneTimePreKey{
			KeyID:     id,
			PublicKey: append([]byte(nil), e.Pub.Slice()...),
		})
	}
	return out, nil
}

// Clear erases the bundle record and all one-time privates as one
// logical operation.
func (s *KeyStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Delete(bundleRecord); err != nil {
		return err
	}
	return s.storage.Delete(opkRecord)
}

func (s *KeyStore) getJSON(key string, out any) (bool, error) {
	raw, ok, err := s.storage.Get(key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *KeyStore) setJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.storage.Set(key, raw)
}
