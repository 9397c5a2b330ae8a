// Package message exposes the E2EE operations the messaging layer
// calls: encrypt, decrypt, and safety-number derivation.
//
// The flow recomputes a full X3DH agreement per message rather than
// ratcheting symmetric keys inside an established session: each send
// fetches (or cache-hits) the recipient's bundle, derives a one-shot
// secret with a fresh ephemeral key, and seals the plaintext under it.
// One derived key per message is also what bounds GCM nonce collision
// risk.
package message

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"cgraph/internal/directory"
	"cgraph/internal/domain"
	"cgraph/internal/protocol/safetynum"
	"cgraph/internal/protocol/x3dh"
	"cgraph/internal/store"
	"cgraph/internal/util/memzero"

	cgcrypto "cgraph/internal/crypto"
)

// Service encrypts and decrypts direct messages for one local user.
type Service struct {
	userID  domain.UserID
	keys    *store.KeyStore
	bundles *directory.BundleCache
}

// New constructs a message service for userID over the given key store
// and bundle cache.
func New(userID domain.UserID, keys *store.KeyStore, bundles *directory.BundleCache) *Service {
	return &Service{userID: userID, keys: keys, bundles: bundles}
}

// IsInitialized reports whether local key material exists.
func (s *Service) IsInitialized() (bool, error) {
	return s.keys.IsInitialized()
}

// EncryptMessage derives a fresh shared secret against the recipient's
// bundle and seals plaintext under it. The returned message carries
// everything the recipient needs to mirror the agreement.
func (s *Service) EncryptMessage(ctx context.Context, recipient domain.UserID, plaintext []byte) (domain.EncryptedMessage, error) {
	local, ok, err := s.keys.Load()
	if err != nil {
		return domain.EncryptedMessage{}, err
	}
	if !ok {
		return domain.EncryptedMessage{}, domain.ErrNotInitialized
	}

	remote, err := s.bundles.RecipientBundle(ctx, recipient)
	if err != nil {
		return domain.EncryptedMessage{}, err
	}

	secret, ephPub, opkID, err := x3dh.InitiatorSecret(local.Identity, remote)
	if err != nil {
		return domain.EncryptedMessage{}, err
	}
	defer memzero.Zero(secret[:])

	nonce, ciphertext, err := cgcrypto.SealAESGCM(secret, plaintext)
	if err != nil {
		return domain.EncryptedMessage{}, err
	}

	return domain.EncryptedMessage{
		Ciphertext:      ciphertext,
		Nonce:           nonce,
		EphemeralKey:    ephPub.Slice(),
		RecipientKeyID:  remote.IdentityKeyID,
		OneTimePreKeyID: opkID,
	}, nil
}

// DecryptMessage mirrors the sender's key agreement and opens the
// payload. The sender's identity key arrives base64-encoded from
// conversation metadata. A referenced one-time prekey is consumed
// permanently, even if the agreement later fails: single-use material
// never gets a second life.
func (s *Service) DecryptMessage(ctx context.Context, sender domain.UserID, senderIdentityKeyB64 string, msg domain.EncryptedMessage) ([]byte, error) {
	local, ok, err := s.keys.Load()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotInitialized
	}

	senderIK, err := decodeKey(senderIdentityKeyB64)
	if err != nil {
		return nil, &domain.KeyAgreementError{Reason: "malformed sender identity key", Err: err}
	}
	senderEph, err := decodeRaw(msg.EphemeralKey)
	if err != nil {
		return nil, &domain.KeyAgreementError{Reason: "malformed ephemeral key", Err: err}
	}

	var opkPriv *domain.X25519Private
	if msg.OneTimePreKeyID != "" {
		priv, ok, err := s.keys.ConsumeOneTimePreKey(msg.OneTimePreKeyID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &domain.KeyAgreementError{
				Reason: "one-time prekey " + msg.OneTimePreKeyID.String() + " is not available",
			}
		}
		opkPriv = &priv
	}

	secret, err := x3dh.ResponderSecret(local.Identity.Priv, local.SignedPreKey.Priv, opkPriv, senderIK, senderEph)
	if opkPriv != nil {
		memzero.Zero(opkPriv[:])
	}
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(secret[:])

	return cgcrypto.OpenAESGCM(secret, msg.Nonce, msg.Ciphertext)
}

// SafetyNumber derives the 60-digit verification code for the local user
// and other. Both parties compute an identical string.
func (s *Service) SafetyNumber(ctx context.Context, other domain.UserID) (string, error) {
	local, ok, err := s.keys.Load()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrNotInitialized
	}

	remote, err := s.bundles.RecipientBundle(ctx, other)
	if err != nil {
		return "", err
	}
	return safetynum.Compute(s.userID, local.Identity.Pub.Slice(), other, remote.IdentityKey), nil
}

// WrapEnvelope packs an encrypted message for store-and-forward
// delivery, attaching the local identity key the recipient will need.
func (s *Service) WrapEnvelope(to domain.UserID, msg domain.EncryptedMessage) (domain.Envelope, error) {
	local, ok, err := s.keys.Load()
	if err != nil {
		return domain.Envelope{}, err
	}
	if !ok {
		return domain.Envelope{}, domain.ErrNotInitialized
	}
	return domain.Envelope{
		From:              s.userID,
		To:                to,
		SenderIdentityKey: local.Identity.Pub.Slice(),
		Message:           msg,
		Timestamp:         time.Now().Unix(),
	}, nil
}

func decodeKey(b64 string) (domain.X25519Public, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return domain.X25519Public{}, err
	}
	return decodeRaw(raw)
}

func decodeRaw(raw []byte) (domain.X25519Public, error) {
	var pub domain.X25519Public
	if len(raw) != len(pub) {
		return pub, fmt.Errorf("public key is %d bytes, want %d", len(raw), len(pub))
	}
	copy(pub[:], raw)
	return pub, nil
}
