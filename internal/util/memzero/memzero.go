// Package memzero wipes key material held in byte slices and arrays.
package memzero

import (
	"crypto/subtle"
	"runtime"
)

// Zero overwrites b with zeros.
//
//go:noinline
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
	runtime.KeepAlive(&b)
}

// Key32 zeroes a fixed-size key such as a NIP-44 conversation key.
func Key32(k *[32]byte) {
	if k != nil {
		Zero(k[:])
	}
}

// All zeroes every buffer in bufs. Nil entries are skipped.
func All(bufs ...[]byte) {
	for _, b := range bufs {
		Zero(b)
	}
}
