package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cgraph/internal/domain"
)

// FileStorage is device-secure storage backed by per-record encrypted
// files. Each record key maps to one file sealed with the passphrase
// envelope.
type FileStorage struct {
	dir        string
	passphrase string
	mu         sync.Mutex
}

// NewFileStorage returns storage rooted at dir, sealing records with
// passphrase.
func NewFileStorage(dir, passphrase string) *FileStorage {
	return &FileStorage{dir: dir, passphrase: passphrase}
}

// Get reads and unseals a record. A missing record is (nil, false, nil).
func (s *FileStorage) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	raw, err := open(s.passphrase, blob)
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// Set seals value and writes it atomically.
func (s *FileStorage) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := seal(s.passphrase, value)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path(key), blob, 0o600)
}

// Delete removes a record; deleting an absent record is not an error.
func (s *FileStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *FileStorage) path(key string) string {
	// Keys are internal constants, but keep them filesystem-safe anyway.
	name := strings.ReplaceAll(key, string(os.PathSeparator), "_")
	return filepath.Join(s.dir, name+".enc")
}

// writeFileAtomic writes bytes via a temp file, then replaces the target.
func writeFileAtomic(path string, b []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	f, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	// Best-effort cleanup if anything fails before rename.
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// MemStorage is an in-memory SecureStorage for tests and ephemeral
// sessions.
type MemStorage struct {
	mu      sync.Mutex
	records map[string][]byte
}

// NewMemStorage returns empty in-memory storage.
func NewMemStorage() *MemStorage {
	return &MemStorage{records: make(map[string][]byte)}
}

// Get returns a copy of the stored value, or ok=false when absent.
func (s *MemStorage) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores a copy of value under key.
func (s *MemStorage) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key; absent keys are not an error.
func (s *MemStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}

// Compile-time assertions that both implement domain.SecureStorage.
var (
	_ domain.SecureStorage = (*FileStorage)(nil)
	_ domain.SecureStorage = (*MemStorage)(nil)
)
