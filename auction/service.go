package auction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"peerbid/metrics"
	"peerbid/store"
)

// These type aliases are a quick and hacky way to ensure that the API of
// `package auction` doesn't include types defined in `package store`.
type (
	Auction = store.Auction
	Bid     = store.Bid
)

// PlacedBid is the outcome of a bid submission. A bid at or below the current
// floor is a soft rejection, reported here rather than as an error, so the
// RPC layer can tell the bidder what they need to beat.
type PlacedBid struct {
	Auction  *Auction
	Accepted bool
	Floor    float64 // the price the bid had to strictly exceed
}

type Service interface {
	Ping(ctx context.Context) error
	Create(ctx context.Context, id, details, creator string, initialPrice float64) (*Auction, error)
	Get(ctx context.Context, id string) (*Auction, error)
	List(ctx context.Context) ([]*Auction, error)
	PlaceBid(ctx context.Context, id string, bid Bid) (*PlacedBid, error)
	Close(ctx context.Context, id, callerID string) (*Auction, error)
}

//
//
//

type CoreService struct {
	store store.Store
	keys  *keyedMutex
}

var _ Service = (*CoreService)(nil)

func NewCoreService(s store.Store) *CoreService {
	return &CoreService{
		store: s,
		keys:  newKeyedMutex(),
	}
}

func (s *CoreService) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}

	return nil
}

// Create writes a new open auction record. The existence check and the write
// hold the per-ID lock, so concurrent creates with the same ID observe each
// other.
func (s *CoreService) Create(ctx context.Context, id, details, creator string, initialPrice float64) (_ *Auction, err error) {
	defer func() {
		metrics.AuctionsCreatedTotal.WithLabelValues(boolString(err == nil, "success", "error")).Inc()
	}()

	switch {
	case id == "":
		return nil, fmt.Errorf("%w: missing auction ID", ErrInvalidArgument)
	case creator == "":
		return nil, fmt.Errorf("%w: missing creator", ErrInvalidArgument)
	case math.IsNaN(initialPrice) || math.IsInf(initialPrice, 0):
		return nil, fmt.Errorf("%w: initial price must be a finite number", ErrInvalidArgument)
	case initialPrice < 0:
		return nil, fmt.Errorf("%w: initial price must be non-negative", ErrInvalidArgument)
	}

	defer s.keys.lock(id)()

	_, err = s.store.GetAuction(ctx, id)
	switch {
	case err == nil:
		return nil, fmt.Errorf("auction %s: %w", id, ErrAlreadyExists)
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("check auction %s: %w", id, err)
	}

	a := &Auction{
		ID:           id,
		Details:      details,
		Creator:      creator,
		InitialPrice: initialPrice,
		Bids:         []Bid{},
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.PutAuction(ctx, a); err != nil {
		return nil, fmt.Errorf("persist auction %s: %w", id, err)
	}

	return a, nil
}

func (s *CoreService) Get(ctx context.Context, id string) (*Auction, error) {
	a, err := s.store.GetAuction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get auction %s: %w", id, err)
	}

	return a, nil
}

func (s *CoreService) List(ctx context.Context) ([]*Auction, error) {
	auctions, err := s.store.ListAuctions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}

	return auctions, nil
}

// PlaceBid appends a bid if it strictly exceeds the current floor, the
// maximum of the initial price and every recorded bid. Ties are rejected, so
// "highest bid" is always unique. The read-modify-write cycle holds the
// per-auction lock; bids on other auctions are not blocked.
func (s *CoreService) PlaceBid(ctx context.Context, id string, bid Bid) (pb *PlacedBid, err error) {
	defer func() {
		switch {
		case err != nil:
			metrics.BidsSubmittedTotal.WithLabelValues("error").Inc()
		case !pb.Accepted:
			metrics.BidsSubmittedTotal.WithLabelValues("rejected").Inc()
		default:
			metrics.BidsSubmittedTotal.WithLabelValues("accepted").Inc()
		}
	}()

	switch {
	case id == "":
		return nil, fmt.Errorf("%w: missing auction ID", ErrInvalidArgument)
	case bid.Bidder == "":
		return nil, fmt.Errorf("%w: missing bidder", ErrInvalidArgument)
	case math.IsNaN(bid.Price) || math.IsInf(bid.Price, 0):
		return nil, fmt.Errorf("%w: bid price must be a finite number", ErrInvalidArgument)
	}

	defer s.keys.lock(id)()

	a, err := s.store.GetAuction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get auction %s: %w", id, err)
	}

	if a.Closed() {
		return nil, fmt.Errorf("auction %s: %w", id, ErrAuctionClosed)
	}

	floor := a.Floor()
	if bid.Price <= floor {
		return &PlacedBid{Auction: a, Accepted: false, Floor: floor}, nil
	}

	a.Bids = append(a.Bids, bid)

	if err := s.store.PutAuction(ctx, a); err != nil {
		return nil, fmt.Errorf("persist auction %s: %w", id, err)
	}

	return &PlacedBid{Auction: a, Accepted: true, Floor: floor}, nil
}

// Close selects the winner and makes the auction terminal. Only the creator
// may close, the auction needs at least one bid, and a second close is
// rejected. The winner is the highest bid; equal prices can't occur because
// PlaceBid rejects ties.
func (s *CoreService) Close(ctx context.Context, id, callerID string) (_ *Auction, err error) {
	defer func() {
		metrics.AuctionsClosedTotal.WithLabelValues(boolString(err == nil, "success", "error")).Inc()
	}()

	switch {
	case id == "":
		return nil, fmt.Errorf("%w: missing auction ID", ErrInvalidArgument)
	case callerID == "":
		return nil, fmt.Errorf("%w: missing caller ID", ErrInvalidArgument)
	}

	defer s.keys.lock(id)()

	a, err := s.store.GetAuction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get auction %s: %w", id, err)
	}

	switch {
	case a.Closed():
		return nil, fmt.Errorf("auction %s: %w", id, ErrAlreadyClosed)
	case a.Creator != callerID:
		return nil, fmt.Errorf("auction %s: caller %s: %w", id, callerID, ErrUnauthorized)
	case len(a.Bids) == 0:
		return nil, fmt.Errorf("auction %s: %w", id, ErrNoBids)
	}

	a.Winner = a.WinningBid()
	a.ClosedAt = time.Now().UTC()

	if err := s.store.PutAuction(ctx, a); err != nil {
		return nil, fmt.Errorf("persist auction %s: %w", id, err)
	}

	return a, nil
}

func boolString(b bool, t, f string) string {
	if b {
		return t
	}
	return f
}
