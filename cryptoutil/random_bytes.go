// Package cryptoutil generates the random material the node depends on:
// identity seeds and auction identifiers.
package cryptoutil

import (
	"crypto/rand"
	"fmt"
)

// RandomBytes returns n bytes from the system CSPRNG. Identity seeds and
// auction IDs both come from here, so a failing entropy source is fatal.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	nn, err := rand.Read(b)
	if err != nil {
		panic(fmt.Errorf("get random bytes: %v", err))
	}
	if nn != n {
		panic(fmt.Errorf("short read: %d < %d", nn, n))
	}
	return b
}
