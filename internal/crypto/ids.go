package crypto

import (
	"crypto/rand"
	"encoding/hex"

	"cgraph/internal/domain"
)

// keyIDBytes is the entropy behind a key id. 8 random bytes make
// collisions negligible even across large prekey batches.
const keyIDBytes = 8

// NewKeyID returns a random key id. An RNG failure is surfaced, not
// papered over with a weaker source.
func NewKeyID() (domain.KeyID, error) {
	var b [keyIDBytes]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return domain.KeyID(hex.EncodeToString(b[:])), nil
}
