// Package store implements device-secure storage for the local key
// bundle.
//
// Storage is an injected capability (domain.SecureStorage) so the key
// logic tests against an in-memory fake. The file-backed implementation
// seals every value in a passphrase-derived envelope (scrypt key
// derivation + ChaCha20-Poly1305) and writes atomically via a temp file
// and rename.
//
// KeyStore layers the E2EE record semantics on top: the identity pair,
// signed prekey pair, signature and device id persist as one logical
// record; one-time prekey privates live in a separate record and are
// deleted on first use. Load reports absence without error and Clear
// removes everything as a single logical operation.
package store
