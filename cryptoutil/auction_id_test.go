package cryptoutil

import (
	"encoding/hex"
	"testing"
)

func TestNewAuctionID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewAuctionID()
		if want, have := 32, len(id); want != have {
			t.Fatalf("length: want %d, have %d", want, have)
		}
		if _, err := hex.DecodeString(id); err != nil {
			t.Fatalf("not hex: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate ID %s", id)
		}
		seen[id] = true
	}
}
