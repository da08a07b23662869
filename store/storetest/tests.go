package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"peerbid/store"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Backends differ on whether an empty bid list round-trips as nil or as an
// allocated slice; both serialize to [], so the suite treats them as equal.
var diffOpts = []cmp.Option{cmpopts.EquateEmpty()}

// TestStore runs the conformance suite every backend must pass.
func TestStore(t *testing.T, makeStore func(*testing.T) store.Store) {
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		s := makeStore(t)
		if err := s.Ping(ctx); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("GetAuction", func(t *testing.T) {
		s := makeStore(t)
		auction := NewAuction(t, s, 50)

		have, err := s.GetAuction(ctx, auction.ID)
		if err != nil {
			t.Fatal(err)
		}

		if diff := cmp.Diff(auction, have, diffOpts...); diff != "" {
			t.Fatalf("mismatch: %s", diff)
		}
	})

	t.Run("GetAuctionMissing", func(t *testing.T) {
		s := makeStore(t)

		_, err := s.GetAuction(ctx, "deadbeefdeadbeefdeadbeefdeadbeef")
		if want, have := store.ErrNotFound, err; !errors.Is(have, want) {
			t.Fatalf("want %v, have %v", want, have)
		}
	})

	t.Run("PutAuctionOverwrite", func(t *testing.T) {
		s := makeStore(t)
		auction := NewAuction(t, s, 50)

		auction.Bids = append(auction.Bids,
			store.Bid{Price: 60, Bidder: Bidder1},
			store.Bid{Price: 70, Bidder: Bidder2},
		)
		auction.Winner = &store.Bid{Price: 70, Bidder: Bidder2}
		auction.ClosedAt = time.Now().UTC().Truncate(time.Microsecond)

		if err := s.PutAuction(ctx, auction); err != nil {
			t.Fatal(err)
		}

		have, err := s.GetAuction(ctx, auction.ID)
		if err != nil {
			t.Fatal(err)
		}

		if diff := cmp.Diff(auction, have, diffOpts...); diff != "" {
			t.Fatalf("mismatch: %s", diff)
		}
	})

	t.Run("PutAuctionNoAliasing", func(t *testing.T) {
		s := makeStore(t)
		auction := NewAuction(t, s, 50, store.Bid{Price: 60, Bidder: Bidder1})

		// Mutating the caller's copy must not leak into the stored record.
		auction.Bids[0].Price = 999

		have, err := s.GetAuction(ctx, auction.ID)
		if err != nil {
			t.Fatal(err)
		}

		if want, have := 60.0, have.Bids[0].Price; want != have {
			t.Fatalf("stored bid price: want %v, have %v", want, have)
		}
	})

	t.Run("ListAuctions", func(t *testing.T) {
		s := makeStore(t)

		have, err := s.ListAuctions(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(have) != 0 {
			t.Fatalf("fresh store: want no auctions, have %d", len(have))
		}

		a1 := NewAuction(t, s, 50)
		a2 := NewAuction(t, s, 100)

		want := []*store.Auction{a1, a2}
		if a2.ID < a1.ID {
			want = []*store.Auction{a2, a1}
		}

		have, err = s.ListAuctions(ctx)
		if err != nil {
			t.Fatal(err)
		}

		if diff := cmp.Diff(want, have, diffOpts...); diff != "" {
			t.Fatalf("mismatch: %s", diff)
		}
	})

	t.Run("Secrets", func(t *testing.T) {
		s := makeStore(t)

		_, err := s.GetSecret(ctx, "dht-seed")
		if want, have := store.ErrNotFound, err; !errors.Is(have, want) {
			t.Fatalf("want %v, have %v", want, have)
		}

		seed := []byte{0x01, 0x02, 0x03, 0x04}
		if err := s.PutSecret(ctx, "dht-seed", seed); err != nil {
			t.Fatal(err)
		}

		have, err := s.GetSecret(ctx, "dht-seed")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(seed, have); diff != "" {
			t.Fatalf("mismatch: %s", diff)
		}

		next := []byte{0xff}
		if err := s.PutSecret(ctx, "dht-seed", next); err != nil {
			t.Fatal(err)
		}
		have, err = s.GetSecret(ctx, "dht-seed")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(next, have); diff != "" {
			t.Fatalf("mismatch after overwrite: %s", diff)
		}
	})
}
