// Package bundle generates the device key bundle and projects it into
// its public wire forms.
package bundle

import (
	"fmt"
	"runtime"
	"sync"

	"cgraph/internal/crypto"
	"cgraph/internal/domain"
)

// DefaultOneTimePreKeyCount is the batch size generated at setup and the
// replenishment high-water mark.
const DefaultOneTimePreKeyCount = 100

// GenerateIdentityKeyPair produces the long-term identity: an
// ECDH-capable X25519 pair plus a dedicated Ed25519 signing pair, under
// a random key id.
func GenerateIdentityKeyPair() (domain.IdentityKeyPair, error) {
	id, err := crypto.NewKeyID()
	if err != nil {
		return domain.IdentityKeyPair{}, err
	}
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.IdentityKeyPair{}, err
	}
	signPriv, signPub, err := crypto.GenerateEd25519()
	if err != nil {
		return domain.IdentityKeyPair{}, err
	}
	return domain.IdentityKeyPair{
		ID:          id,
		Pub:         pub,
		Priv:        priv,
		SigningPub:  signPub,
		SigningPriv: signPriv,
	}, nil
}

// GenerateSignedPreKey produces a fresh medium-term pair whose exported
// public key is signed by the identity's signing key.
func GenerateSignedPreKey(identity domain.IdentityKeyPair) (domain.SignedPreKeyPair, error) {
	id, err := crypto.NewKeyID()
	if err != nil {
		return domain.SignedPreKeyPair{}, err
	}
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.SignedPreKeyPair{}, err
	}
	return domain.SignedPreKeyPair{
		ID:        id,
		Pub:       pub,
		Priv:      priv,
		Signature: crypto.SignEd25519(identity.SigningPriv, pub.Slice()),
	}, nil
}

// GenerateOneTimePreKeys produces count independent single-use pairs.
// Generation is embarrassingly parallel and spread across workers.
func GenerateOneTimePreKeys(count int) ([]domain.OneTimePreKeyPair, error) {
	if count <= 0 {
		return nil, nil
	}

	pairs := make([]domain.OneTimePreKeyPair, count)
	workers := runtime.NumCPU()
	if workers > count {
		workers = count
	}

	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		genErr  error
	)
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				id, err := crypto.NewKeyID()
				if err != nil {
					errOnce.Do(func() { genErr = err })
					continue
				}
				priv, pub, err := crypto.GenerateX25519()
				if err != nil {
					errOnce.Do(func() { genErr = err })
					continue
				}
				pairs[i] = domain.OneTimePreKeyPair{ID: id, Pub: pub, Priv: priv}
			}
		}()
	}
	for i := 0; i < count; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if genErr != nil {
		return nil, fmt.Errorf("one-time prekey generation: %w", genErr)
	}
	return pairs, nil
}

// GenerateKeyBundle composes a complete fresh bundle for a device. Every
// call yields new material; callers must never invoke it twice without
// explicitly discarding the old bundle.
func GenerateKeyBundle(deviceID domain.DeviceID, oneTimeCount int) (domain.KeyBundle, error) {
	identity, err := GenerateIdentityKeyPair()
	if err != nil {
		return domain.KeyBundle{}, &domain.SetupError{Err: err}
	}
	spk, err := GenerateSignedPreKey(identity)
	if err != nil {
		return domain.KeyBundle{}, &domain.SetupError{Err: err}
	}
	opks, err := GenerateOneTimePreKeys(oneTimeCount)
	if err != nil {
		return domain.KeyBundle{}, &domain.SetupError{Err: err}
	}
	return domain.KeyBundle{
		DeviceID:       deviceID,
		Identity:       identity,
		SignedPreKey:   spk,
		OneTimePreKeys: opks,
	}, nil
}

// FormatForRegistration projects a local bundle to its public wire form.
// Pure and side-effect free; private key bytes never appear in the
// output.
func FormatForRegistration(userID domain.UserID, b domain.KeyBundle) domain.RegistrationBundle {
	return domain.RegistrationBundle{
		UserID:        userID,
		DeviceID:      b.DeviceID,
		IdentityKey:   append([]byte(nil), b.Identity.Pub.Slice()...),
		IdentityKeyID: b.Identity.ID,
		SigningKey:    append([]byte(nil), b.Identity.SigningPub.Slice()...),
		SignedPreKey: domain.WireSignedPreKey{
			KeyID:     b.SignedPreKey.ID,
			PublicKey: append([]byte(nil), b.SignedPreKey.Pub.Slice()...),
			Signature: append([]byte(nil), b.SignedPreKey.Signature...),
		},
		OneTimePreKeys: FormatPreKeysForUpload(b.OneTimePreKeys),
	}
}

// FormatPreKeysForUpload projects one-time pairs to their public halves.
func FormatPreKeysForUpload(pairs []domain.OneTimePreKeyPair) []domain.WireOneTimePreKey {
	out := make([]domain.WireOneTimePreKey, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, domain.WireOneTimePreKey{
			KeyID:     p.ID,
			PublicKey: append([]byte(nil), p.Pub.Slice()...),
		})
	}
	return out
}
