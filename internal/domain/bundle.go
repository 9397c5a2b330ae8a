package domain

import (
	"crypto/ed25519"
	"errors"
	"fmt"
)

const (
	x25519KeySize  = 32
	ed25519KeySize = ed25519.PublicKeySize
	signatureSize  = ed25519.SignatureSize
)

// WireSignedPreKey is the public projection of a signed prekey.
type WireSignedPreKey struct {
	KeyID     KeyID  `json:"key_id"`
	PublicKey []byte `json:"public_key"`
	Signature []byte `json:"signature"`
}

// WireOneTimePreKey is the public projection of a one-time prekey.
type WireOneTimePreKey struct {
	KeyID     KeyID  `json:"key_id"`
	PublicKey []byte `json:"public_key"`
}

// RegistrationBundle is the payload a device uploads to the key
// directory. Public halves only.
type RegistrationBundle struct {
	UserID         UserID              `json:"user_id"`
	DeviceID       DeviceID            `json:"device_id"`
	IdentityKey    []byte              `json:"identity_key"`
	IdentityKeyID  KeyID               `json:"key_id"`
	SigningKey     []byte              `json:"signing_key"`
	SignedPreKey   WireSignedPreKey    `json:"signed_prekey"`
	OneTimePreKeys []WireOneTimePreKey `json:"one_time_prekeys"`
}

// ServerPreKeyBundle is a recipient's bundle as served by the directory.
// The directory attaches at most one one-time prekey and marks it
// consumed before the response leaves the server.
type ServerPreKeyBundle struct {
	UserID        UserID             `json:"user_id"`
	DeviceID      DeviceID           `json:"device_id"`
	IdentityKey   []byte             `json:"identity_key"`
	IdentityKeyID KeyID              `json:"key_id"`
	SigningKey    []byte             `json:"signing_key"`
	SignedPreKey  WireSignedPreKey   `json:"signed_prekey"`
	OneTimePreKey *WireOneTimePreKey `json:"one_time_prekey,omitempty"`
}

// HasOneTimePreKey reports whether the directory attached a one-time
// prekey to this bundle.
func (b ServerPreKeyBundle) HasOneTimePreKey() bool { return b.OneTimePreKey != nil }

var errMalformedBundle = errors.New("malformed prekey bundle")

// Validate rejects a malformed bundle before it reaches the agreement
// engine. It checks structure only; signature verification is the
// engine's job.
func (b ServerPreKeyBundle) Validate() error {
	if b.UserID == "" {
		return fmt.Errorf("%w: missing user id", errMalformedBundle)
	}
	if len(b.IdentityKey) != x25519KeySize {
		return fmt.Errorf("%w: identity key is %d bytes, want %d", errMalformedBundle, len(b.IdentityKey), x25519KeySize)
	}
	if len(b.SigningKey) != ed25519KeySize {
		return fmt.Errorf("%w: signing key is %d bytes, want %d", errMalformedBundle, len(b.SigningKey), ed25519KeySize)
	}
	if b.SignedPreKey.KeyID == "" {
		return fmt.Errorf("%w: missing signed prekey id", errMalformedBundle)
	}
	if len(b.SignedPreKey.PublicKey) != x25519KeySize {
		return fmt.Errorf("%w: signed prekey is %d bytes, want %d", errMalformedBundle, len(b.SignedPreKey.PublicKey), x25519KeySize)
	}
	if len(b.SignedPreKey.Signature) != signatureSize {
		return fmt.Errorf("%w: signed prekey signature is %d bytes, want %d", errMalformedBundle, len(b.SignedPreKey.Signature), signatureSize)
	}
	if opk := b.OneTimePreKey; opk != nil {
		if opk.KeyID == "" {
			return fmt.Errorf("%w: missing one-time prekey id", errMalformedBundle)
		}
		if len(opk.PublicKey) != x25519KeySize {
			return fmt.Errorf("%w: one-time prekey is %d bytes, want %d", errMalformedBundle, len(opk.PublicKey), x25519KeySize)
		}
	}
	return nil
}
