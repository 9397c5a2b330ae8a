package domain

// UserID identifies an account in the key directory.
type UserID string

// String returns the string form of the user id.
func (u UserID) String() string { return string(u) }

// DeviceID identifies one device belonging to a user.
type DeviceID string

// String returns the string form of the device id.
func (d DeviceID) String() string { return string(d) }

// KeyID identifies a single key (identity, signed prekey, or one-time
// prekey). Ids are random and opaque; only equality matters.
type KeyID string

// String returns the string form of the key id.
func (k KeyID) String() string { return string(k) }

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// Ed25519Private is an Ed25519 signing private key.
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }
