package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"cgraph/internal/domain"
)

// AES-256-GCM parameters for the message payload. Each derived key
// encrypts exactly one message, so a random 12-byte nonce per call keeps
// collision risk negligible.
const (
	AEADKeySize  = 32
	GCMNonceSize = 12
)

// SealAESGCM encrypts plaintext under key with a fresh random nonce and
// returns nonce and ciphertext (tag appended).
func SealAESGCM(key [AEADKeySize]byte, plaintext []byte) (nonce, ciphertext []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, GCMNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return nonce, aead.Seal(nil, nonce, plaintext, nil), nil
}

// OpenAESGCM decrypts ciphertext under key and nonce. A tag mismatch
// yields domain.ErrDecryptionFailed; no unauthenticated plaintext is
// ever returned.
func OpenAESGCM(key [AEADKeySize]byte, nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != GCMNonceSize {
		return nil, fmt.Errorf("%w: nonce is %d bytes, want %d", domain.ErrDecryptionFailed, len(nonce), GCMNonceSize)
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}
	return pt, nil
}

func newGCM(key [AEADKeySize]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
