package x3dh

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"cgraph/internal/crypto"
	"cgraph/internal/domain"
	"cgraph/internal/util/memzero"
)

// hkdfInfo binds derived secrets to this protocol version. Changing it
// breaks interoperability with every deployed client.
const hkdfInfo = "CGraph E2EE v1"

// SecretSize is the length of the derived shared secret.
const SecretSize = 32

// InitiatorSecret derives the shared secret for a send against the
// recipient's bundle. It returns the secret, the fresh ephemeral public
// key to transmit with the message, and the id of the one-time prekey
// that was mixed in ("" when the bundle carried none).
func InitiatorSecret(
	ourIdentity domain.IdentityKeyPair,
	bundle domain.ServerPreKeyBundle,
) (secret [SecretSize]byte, ephPub domain.X25519Public, opkID domain.KeyID, err error) {
	if err := bundle.Validate(); err != nil {
		return secret, ephPub, "", &domain.KeyAgreementError{Reason: "invalid bundle", Err: err}
	}

	var signingKey domain.Ed25519Public
	copy(signingKey[:], bundle.SigningKey)
	if !crypto.VerifyEd25519(signingKey, bundle.SignedPreKey.PublicKey, bundle.SignedPreKey.Signature) {
		return secret, ephPub, "", &domain.KeyAgreementError{Reason: "signed prekey signature does not verify"}
	}

	var peerIK, peerSPK domain.X25519Public
	copy(peerIK[:], bundle.IdentityKey)
	copy(peerSPK[:], bundle.SignedPreKey.PublicKey)

	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return secret, ephPub, "", &domain.KeyAgreementError{Reason: "ephemeral key generation", Err: err}
	}
	defer memzero.Zero(ephPriv[:])

	var peerOPK *domain.X25519Public
	if bundle.HasOneTimePreKey() {
		var opk domain.X25519Public
		copy(opk[:], bundle.OneTimePreKey.PublicKey)
		peerOPK = &opk
		opkID = bundle.OneTimePreKey.KeyID
	}

	secret, err = derive(
		dhPair{ourIdentity.Priv, peerSPK}, // DH1 = DH(IKa, SPKb)
		dhPair{ephPriv, peerIK},           // DH2 = DH(EKa, IKb)
		dhPair{ephPriv, peerSPK},          // DH3 = DH(EKa, SPKb)
		optionalDH(ephPriv, peerOPK),      // DH4 = DH(EKa, OPKb)
	)
	if err != nil {
		return secret, ephPub, "", err
	}
	return secret, ephPub, opkID, nil
}

// ResponderSecret mirrors the initiator's derivation on the receiving
// side. senderIK comes from conversation metadata, senderEph from the
// message itself, and opkPriv is the consumed one-time private key for
// the id the message referenced (nil when the initiator had none).
func ResponderSecret(
	ourIdentityPriv domain.X25519Private,
	ourSignedPreKeyPriv domain.X25519Private,
	opkPriv *domain.X25519Private,
	senderIK domain.X25519Public,
	senderEph domain.X25519Public,
) (secret [SecretSize]byte, err error) {
	var opk *optional
	if opkPriv != nil {
		opk = &optional{priv: *opkPriv, pub: senderEph}
	}
	return derive(
		dhPair{ourSignedPreKeyPriv, senderIK},  // DH1 = DH(SPKb, IKa)
		dhPair{ourIdentityPriv, senderEph},     // DH2 = DH(IKb, EKa)
		dhPair{ourSignedPreKeyPriv, senderEph}, // DH3 = DH(SPKb, EKa)
		opk,                                    // DH4 = DH(OPKb, EKa)
	)
}

type dhPair struct {
	priv domain.X25519Private
	pub  domain.X25519Public
}

type optional = dhPair

func optionalDH(priv domain.X25519Private, pub *domain.X25519Public) *optional {
	if pub == nil {
		return nil
	}
	return &optional{priv: priv, pub: *pub}
}

// derive concatenates the DH outputs in their fixed order and stretches
// them with HKDF-SHA256 (zero salt). Both sides must feed identical
// transcripts or the secrets diverge.
func derive(dh1, dh2, dh3 dhPair, dh4 *optional) (secret [SecretSize]byte, err error) {
	pairs := []dhPair{dh1, dh2, dh3}
	if dh4 != nil {
		pairs = append(pairs, *dh4)
	}

	ikm := make([]byte, 0, len(pairs)*32)
	defer func() { memzero.Zero(ikm) }()
	for _, p := range pairs {
		out, err := crypto.DH(p.priv, p.pub)
		if err != nil {
			return secret, &domain.KeyAgreementError{Reason: "diffie-hellman", Err: err}
		}
		ikm = append(ikm, out[:]...)
		memzero.Zero(out[:])
	}

	r := hkdf.New(sha256.New, ikm, nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(r, secret[:]); err != nil {
		return secret, &domain.KeyAgreementError{Reason: "hkdf", Err: err}
	}
	return secret, nil
}
