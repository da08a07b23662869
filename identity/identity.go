// Package identity manages a node's keypair. Seeds are persisted in the
// store, so a node keeps the same peer ID across restarts.
package identity

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"peerbid/cryptoutil"
	"peerbid/store"
)

const (
	dhtSeedName = "dht-seed"
	rpcSeedName = "rpc-seed"
)

// Identity is a node's long-lived keypair material. PeerID, the hex form of
// the RPC public key, is how other nodes address and recognize this one.
type Identity struct {
	DHTSeed []byte
	RPCSeed []byte
	PeerID  string

	key ed25519.PrivateKey
}

// Load reads the node's seeds from the store, generating and persisting them
// on first run.
func Load(ctx context.Context, s store.Store) (*Identity, error) {
	dhtSeed, err := loadOrCreateSeed(ctx, s, dhtSeedName)
	if err != nil {
		return nil, fmt.Errorf("DHT seed: %w", err)
	}

	rpcSeed, err := loadOrCreateSeed(ctx, s, rpcSeedName)
	if err != nil {
		return nil, fmt.Errorf("RPC seed: %w", err)
	}

	key := ed25519.NewKeyFromSeed(rpcSeed)

	return &Identity{
		DHTSeed: dhtSeed,
		RPCSeed: rpcSeed,
		PeerID:  hex.EncodeToString(key.Public().(ed25519.PublicKey)),
		key:     key,
	}, nil
}

func (id *Identity) Sign(message []byte) []byte {
	return ed25519.Sign(id.key, message)
}

func loadOrCreateSeed(ctx context.Context, s store.Store, name string) ([]byte, error) {
	seed, err := s.GetSecret(ctx, name)
	switch {
	case err == nil:
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("stored seed %q has %d bytes, want %d", name, len(seed), ed25519.SeedSize)
		}
		return seed, nil

	case errors.Is(err, store.ErrNotFound):
		seed = cryptoutil.RandomBytes(ed25519.SeedSize)
		if err := s.PutSecret(ctx, name, seed); err != nil {
			return nil, fmt.Errorf("persist seed: %w", err)
		}
		return seed, nil

	default:
		return nil, fmt.Errorf("get seed %q: %w", name, err)
	}
}
