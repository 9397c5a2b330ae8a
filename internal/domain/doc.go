// Package domain defines the core types of the CGraph end-to-end
// encryption subsystem: local key material, the public wire projections
// exchanged with the key directory, the encrypted message payload, and
// the typed failures every public operation can return.
//
// Wire types carry raw key bytes as []byte (base64 in JSON) and are
// validated at the deserialization boundary before any of them reach the
// agreement engine. Private key material never appears in a wire type.
package domain
