package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"peerbid/store"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	auctionPrefix = "auction/"
	secretPrefix  = "secret/"
)

// Store persists records in a BadgerDB key-value database on local disk.
// Auctions live under auction/<id> as JSON, secrets under secret/<name> as
// raw bytes. Single-key reads and writes are atomic, which is all the auction
// service requires.
type Store struct {
	db     *badger.DB
	logger log.Logger
}

var _ store.Store = (*Store)(nil)

func NewStore(dir string, logger log.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // badger's own logger is very chatty

	level.Debug(logger).Log("msg", "opening badger", "dir", dir)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return fmt.Errorf("database closed")
	}
	return nil
}

func (s *Store) GetAuction(ctx context.Context, id string) (*store.Auction, error) {
	var a store.Auction

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(auctionPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &a)
		})
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, store.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("get auction %s: %w", id, err)
	}

	return &a, nil
}

func (s *Store) PutAuction(ctx context.Context, a *store.Auction) error {
	buf, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode auction %s: %w", a.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(auctionPrefix+a.ID), buf)
	})
	if err != nil {
		return fmt.Errorf("put auction %s: %w", a.ID, err)
	}

	return nil
}

func (s *Store) ListAuctions(ctx context.Context) ([]*store.Auction, error) {
	var auctions []*store.Auction

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(auctionPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var a store.Auction
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &a)
			}); err != nil {
				return err
			}
			auctions = append(auctions, &a)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}

	return auctions, nil
}

func (s *Store) GetSecret(ctx context.Context, name string) ([]byte, error) {
	var value []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(secretPrefix + name))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, store.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("get secret %s: %w", name, err)
	}

	return value, nil
}

func (s *Store) PutSecret(ctx context.Context, name string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(secretPrefix+name), value)
	})
	if err != nil {
		return fmt.Errorf("put secret %s: %w", name, err)
	}

	return nil
}
