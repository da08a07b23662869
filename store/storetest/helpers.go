package storetest

import (
	"context"
	"testing"
	"time"

	"peerbid/cryptoutil"
	"peerbid/store"
)

const (
	Creator = "creator-f00f"
	Bidder1 = "bidder-b001"
	Bidder2 = "bidder-b002"
)

func NewAuction(t *testing.T, s store.Store, initialPrice float64, bids ...store.Bid) *store.Auction {
	t.Helper()

	a := &store.Auction{
		ID:           cryptoutil.NewAuctionID(),
		Details:      "selling a picture for 50 USDt",
		Creator:      Creator,
		InitialPrice: initialPrice,
		Bids:         bids,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}

	if err := s.PutAuction(context.Background(), a); err != nil {
		t.Fatal(err)
	}

	return a
}
