package auction

import "errors"

var (
	// ErrInvalidArgument covers malformed input: empty IDs, non-finite or
	// negative prices, missing bidder identifiers.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAlreadyExists is returned by Create when the auction ID is taken.
	ErrAlreadyExists = errors.New("auction already exists")

	// ErrUnauthorized is returned by Close when the caller is not the creator.
	ErrUnauthorized = errors.New("only the auction creator can close the auction")

	// ErrNoBids is returned by Close when the auction has no bids.
	ErrNoBids = errors.New("auction has no bids")

	// ErrAuctionClosed is returned by PlaceBid after the auction reached its
	// terminal state.
	ErrAuctionClosed = errors.New("auction is closed")

	// ErrAlreadyClosed is returned by a second Close. Re-closing is rejected,
	// not silently accepted; the recorded winner never changes.
	ErrAlreadyClosed = errors.New("auction already closed")
)
