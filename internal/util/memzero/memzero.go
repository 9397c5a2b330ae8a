// Package memzero provides best-effort wiping of sensitive byte slices.
package memzero

import "runtime"

// Zero overwrites b with zeroes. Best-effort: it aims to keep the
// compiler from eliding the writes, nothing more.
//
//go:noinline
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(&b)
}
