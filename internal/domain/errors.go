package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by any operation that needs local key
	// material before setup has run. No network call is attempted.
	ErrNotInitialized = errors.New("e2ee is not initialized on this device")

	// ErrAlreadyInitialized is returned when setup finds an existing key
	// bundle. Overwriting silently would orphan in-flight conversations.
	ErrAlreadyInitialized = errors.New("a key bundle already exists; refusing to overwrite")

	// ErrDecryptionFailed marks a single message whose authentication tag
	// did not verify. Never retried, never partially decrypted.
	ErrDecryptionFailed = errors.New("message authentication failed")
)

// SetupError wraps an RNG or storage failure during bundle creation.
// Setup is all-or-nothing; nothing is partially persisted.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string { return "setup failed: " + e.Err.Error() }
func (e *SetupError) Unwrap() error { return e.Err }

// DirectoryError wraps a network or server failure talking to the key
// directory. Retryable errors may be retried with backoff by the caller.
type DirectoryError struct {
	Op        string
	Status    int // HTTP status, 0 for transport failures
	Retryable bool
	Err       error
}

func (e *DirectoryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("directory %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("directory %s: %v", e.Op, e.Err)
}

func (e *DirectoryError) Unwrap() error { return e.Err }

// KeyAgreementError marks a key agreement that cannot be completed for
// one message: malformed or missing remote key, a bad prekey signature,
// derivation failure, or an unavailable one-time private key. Local
// state is untouched and there is no plaintext fallback.
type KeyAgreementError struct {
	Reason string
	Err    error
}

func (e *KeyAgreementError) Error() string {
	if e.Err != nil {
		return "key agreement: " + e.Reason + ": " + e.Err.Error()
	}
	return "key agreement: " + e.Reason
}

func (e *KeyAgreementError) Unwrap() error { return e.Err }

// RevocationError wraps a failed device list or revoke call. Recoverable
// and safe to retry.
type RevocationError struct {
	Err error
}

func (e *RevocationError) Error() string { return "device revocation: " + e.Err.Error() }
func (e *RevocationError) Unwrap() error { return e.Err }
