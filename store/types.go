package store

import (
	"errors"
	"time"
)

// Auction is the authoritative record of one auction, keyed by ID. Only the
// auction service mutates it; every mutation is a whole-record put.
type Auction struct {
	ID           string    `json:"id"`
	Details      string    `json:"details"`
	Creator      string    `json:"creator"`
	InitialPrice float64   `json:"initialPrice"`
	Bids         []Bid     `json:"bids"`
	Winner       *Bid      `json:"winner"`
	CreatedAt    time.Time `json:"createdAt"`
	ClosedAt     time.Time `json:"closedAt"` // zero until the auction closes
}

type Bid struct {
	Price  float64 `json:"price"`
	Bidder string  `json:"bidder"`
}

// Closed reports whether the auction reached its terminal state. An auction is
// closed exactly when a winner has been recorded.
func (a *Auction) Closed() bool {
	return a.Winner != nil
}

// Floor is the price a new bid must strictly exceed to be accepted: the
// maximum of the initial price and every recorded bid price.
func (a *Auction) Floor() float64 {
	floor := a.InitialPrice
	for _, b := range a.Bids {
		if b.Price > floor {
			floor = b.Price
		}
	}
	return floor
}

// WinningBid is the bid with the highest price. When several bids share the
// maximum price the earliest-arriving one wins. Returns nil if there are no
// bids.
func (a *Auction) WinningBid() *Bid {
	var winner *Bid
	for i := range a.Bids {
		if winner == nil || a.Bids[i].Price > winner.Price {
			winner = &a.Bids[i]
		}
	}
	return winner
}

// Copy returns a deep copy, so stores can hand out records without sharing
// bid slices with callers. An empty but non-nil bid slice stays non-nil, so
// open auctions keep serializing bids as [] rather than null.
func (a *Auction) Copy() *Auction {
	c := *a
	if a.Bids != nil {
		c.Bids = make([]Bid, len(a.Bids))
		copy(c.Bids, a.Bids)
	}
	if a.Winner != nil {
		w := *a.Winner
		c.Winner = &w
	}
	return &c
}

var ErrNotFound = errors.New("not found")
