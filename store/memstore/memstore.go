package memstore

import (
	"context"
	"strings"
	"sync"

	"peerbid/store"

	"golang.org/x/exp/slices"
)

// Store keeps everything in process memory. Useful for tests and for running
// a throwaway node; a restart loses all state including the identity seeds.
type Store struct {
	mu       sync.Mutex
	auctions map[string]*store.Auction
	secrets  map[string][]byte
}

var _ store.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		auctions: map[string]*store.Auction{},
		secrets:  map[string][]byte{},
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func (s *Store) GetAuction(ctx context.Context, id string) (*store.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	return a.Copy(), nil
}

func (s *Store) PutAuction(ctx context.Context, a *store.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auctions[a.ID] = a.Copy()

	return nil
}

func (s *Store) ListAuctions(ctx context.Context) ([]*store.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auctions := make([]*store.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		auctions = append(auctions, a.Copy())
	}

	slices.SortFunc(auctions, func(a, b *store.Auction) int {
		return strings.Compare(a.ID, b.ID)
	})

	return auctions, nil
}

func (s *Store) GetSecret(ctx context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.secrets[name]
	if !ok {
		return nil, store.ErrNotFound
	}

	return append([]byte(nil), v...), nil
}

func (s *Store) PutSecret(ctx context.Context, name string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.secrets[name] = append([]byte(nil), value...)

	return nil
}
