// Package token generates the opaque identifiers that correlate
// client-facing URLs with server-side registration records.
package token

import (
	"crypto/rand"
	"encoding/hex"
)

// Length of the raw token in bytes. 16 bytes gives 128 bits of entropy,
// which makes collisions among live registrations negligible without any
// explicit collision checking.
const rawLen = 16

// New returns a fresh unguessable token: 32 lowercase hex characters.
func New() string {
	buf := make([]byte, rawLen)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms as of go 1.24.
		panic(err)
	}
	return hex.EncodeToString(buf)
}
