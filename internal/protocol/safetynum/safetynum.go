// Package safetynum renders the human-comparable safety number two
// users compare out of band to detect a machine-in-the-middle.
package safetynum

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"

	"cgraph/internal/domain"
)

const (
	groups     = 12
	groupWidth = 5
)

// Compute derives the 60-digit safety number for two identities. The
// (user id, key) pairs are ordered ascending by user id before hashing,
// so both parties produce the same string no matter who computes it.
func Compute(userA domain.UserID, keyA []byte, userB domain.UserID, keyB []byte) string {
	lowerID, lowerKey, higherID, higherKey := userA, keyA, userB, keyB
	if userB < userA {
		lowerID, lowerKey, higherID, higherKey = userB, keyB, userA, keyA
	}

	h := sha256.New()
	h.Write([]byte(lowerID))
	h.Write(lowerKey)
	h.Write([]byte(higherID))
	h.Write(higherKey)
	digest := h.Sum(nil)

	parts := make([]string, 0, groups)
	for i := 0; i < groups; i++ {
		chunk := binary.BigEndian.Uint16(digest[i*2 : i*2+2])
		parts = append(parts, fmt.Sprintf("%0*d", groupWidth, chunk))
	}
	return strings.Join(parts, " ")
}
