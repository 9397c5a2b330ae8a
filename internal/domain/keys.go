package domain

// IdentityKeyPair is a device's long-term identity. The X25519 half is
// used for Diffie-Hellman; the Ed25519 half signs the signed prekey so
// that authentication does not lean on a DH key doing double duty.
type IdentityKeyPair struct {
	ID          KeyID          `json:"id"`
	Pub         X25519Public   `json:"pub"`
	Priv        X25519Private  `json:"priv"`
	SigningPub  Ed25519Public  `json:"signing_pub"`
	SigningPriv Ed25519Private `json:"signing_priv"`
}

// SignedPreKeyPair is the medium-term prekey. Signature covers the
// exported public key and is produced by the identity's signing key.
type SignedPreKeyPair struct {
	ID        KeyID         `json:"id"`
	Pub       X25519Public  `json:"pub"`
	Priv      X25519Private `json:"priv"`
	Signature []byte        `json:"signature"`
}

// OneTimePreKeyPair is a single-use prekey. The private half is deleted
// on first use; the public half is uploaded to the directory, which
// hands each one out at most once.
type OneTimePreKeyPair struct {
	ID   KeyID         `json:"id"`
	Pub  X25519Public  `json:"pub"`
	Priv X25519Private `json:"priv"`
}

// KeyBundle aggregates everything a device generates at setup. It is the
// source of truth on the device; generating a second bundle without
// discarding the first orphans any message encrypted against the old one.
type KeyBundle struct {
	DeviceID       DeviceID            `json:"device_id"`
	Identity       IdentityKeyPair     `json:"identity"`
	SignedPreKey   SignedPreKeyPair    `json:"signed_prekey"`
	OneTimePreKeys []OneTimePreKeyPair `json:"one_time_prekeys,omitempty"`
}
