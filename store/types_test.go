package store_test

import (
	"encoding/json"
	"strings"
	"testing"

	"peerbid/store"

	"github.com/google/go-cmp/cmp"
)

func TestAuctionCopy(t *testing.T) {
	t.Parallel()

	a := &store.Auction{
		ID:           "a1",
		InitialPrice: 50,
		Bids:         []store.Bid{{Price: 60, Bidder: "b1"}},
		Winner:       &store.Bid{Price: 60, Bidder: "b1"},
	}

	c := a.Copy()
	c.Bids[0].Price = 999
	c.Winner.Price = 999

	if want, have := 60.0, a.Bids[0].Price; want != have {
		t.Errorf("original bid mutated: want %v, have %v", want, have)
	}

	if want, have := 60.0, a.Winner.Price; want != have {
		t.Errorf("original winner mutated: want %v, have %v", want, have)
	}
}

func TestAuctionCopyKeepsEmptyBids(t *testing.T) {
	t.Parallel()

	a := &store.Auction{ID: "a1", Bids: []store.Bid{}}

	c := a.Copy()
	if c.Bids == nil {
		t.Fatalf("empty bid slice became nil")
	}

	if want, have := []store.Bid{}, c.Bids; !cmp.Equal(want, have) {
		t.Errorf("bids: %s", cmp.Diff(want, have))
	}

	buf, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if !strings.Contains(string(buf), `"bids":[]`) {
		t.Errorf("want bids to serialize as [], have %s", buf)
	}
}
