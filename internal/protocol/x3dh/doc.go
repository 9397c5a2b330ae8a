// Package x3dh implements the X3DH key agreement that derives the
// per-message shared secret between two parties.
//
// # Flows
//
// Initiator:
//  1. Validate the recipient bundle and verify the signed prekey
//     signature against the recipient's signing key.
//  2. Generate an ephemeral X25519 key pair.
//  3. Compute DH1 = DH(IKa, SPKb), DH2 = DH(EKa, IKb), DH3 = DH(EKa, SPKb)
//     and, if the bundle carries a one-time prekey, DH4 = DH(EKa, OPKb).
//  4. HKDF-SHA256 over the concatenated DH outputs (fixed order) yields a
//     32-byte secret.
//  5. Return the secret, the ephemeral public key (transmitted with the
//     message), and the consumed one-time prekey id.
//
// Responder mirrors the same computations with operands swapped, looking
// up the one-time private key by the id carried in the message.
//
// # Errors
//
// Every failure path returns a *domain.KeyAgreementError. They are fatal
// for the one message involved and never fall back to plaintext.
package x3dh
