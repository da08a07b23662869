package cryptoutil

import "encoding/hex"

// NewAuctionID returns a fresh collision-resistant auction identifier,
// 16 random bytes hex-encoded.
func NewAuctionID() string {
	return hex.EncodeToString(RandomBytes(16))
}
