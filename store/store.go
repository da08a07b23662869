package store

import (
	"context"
)

// Store is the adapter over the node's key-value storage engine. Reads and
// writes are atomic per key; nothing here provides multi-key transactions or
// compare-and-swap, so callers must serialize read-modify-write cycles
// themselves (the auction service does this per auction ID).
type Store interface {
	Ping(ctx context.Context) error

	GetAuction(ctx context.Context, id string) (*Auction, error)
	PutAuction(ctx context.Context, a *Auction) error
	ListAuctions(ctx context.Context) ([]*Auction, error)

	// Secrets hold the node's bootstrap seeds, persisted once and reused so
	// the process identity survives restarts.
	GetSecret(ctx context.Context, name string) ([]byte, error)
	PutSecret(ctx context.Context, name string, value []byte) error
}
