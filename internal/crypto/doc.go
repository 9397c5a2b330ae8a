// Package crypto exposes the primitives the E2EE subsystem is built on.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519, DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - AES-256-GCM sealing and opening with a fresh nonce per call
//     (SealAESGCM, OpenAESGCM)
//   - Random key id generation (NewKeyID)
//
// All functions return fixed-size array types defined in internal/domain
// to avoid accidental reallocations. Callers should treat returned
// secrets as sensitive and rely on memzero.Zero when practical.
package crypto
