package auction_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"peerbid/auction"
	"peerbid/store"
	"peerbid/store/memstore"

	"github.com/google/go-cmp/cmp"
)

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc := auction.NewCoreService(memstore.NewStore())

	created, err := svc.Create(ctx, "a1", "a rare widget", "creator-1", 50)
	if err != nil {
		t.Fatal(err)
	}

	if want, have := "a1", created.ID; want != have {
		t.Errorf("ID: want %q, have %q", want, have)
	}

	if want, have := 0, len(created.Bids); want != have {
		t.Errorf("bids: want %d, have %d", want, have)
	}

	if created.Winner != nil {
		t.Errorf("winner: want nil, have %+v", created.Winner)
	}

	if created.Closed() {
		t.Error("new auction reports closed")
	}

	got, err := svc.Get(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(created, got); diff != "" {
		t.Errorf("auction mismatch (-created +got):\n%s", diff)
	}
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := auction.NewCoreService(memstore.NewStore())

	for _, tc := range []struct {
		name         string
		id           string
		creator      string
		initialPrice float64
	}{
		{"missing ID", "", "c1", 10},
		{"missing creator", "a1", "", 10},
		{"negative price", "a1", "c1", -1},
		{"NaN price", "a1", "c1", math.NaN()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.id, "details", tc.creator, tc.initialPrice)
			if !errors.Is(err, auction.ErrInvalidArgument) {
				t.Errorf("want ErrInvalidArgument, have %v", err)
			}
		})
	}
}

func TestCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	svc := auction.NewCoreService(memstore.NewStore())

	if _, err := svc.Create(ctx, "a1", "one", "c1", 10); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Create(ctx, "a1", "two", "c2", 20)
	if !errors.Is(err, auction.ErrAlreadyExists) {
		t.Errorf("want ErrAlreadyExists, have %v", err)
	}

	got, err := svc.Get(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}

	if want, have := "one", got.Details; want != have {
		t.Errorf("details: want %q, have %q", want, have)
	}
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	svc := auction.NewCoreService(memstore.NewStore())

	_, err := svc.Get(ctx, "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("want ErrNotFound, have %v", err)
	}
}

func TestPlaceBidFloor(t *testing.T) {
	ctx := context.Background()
	svc := auction.NewCoreService(memstore.NewStore())

	if _, err := svc.Create(ctx, "a1", "widget", "c1", 50); err != nil {
		t.Fatal(err)
	}

	// At the initial price: soft rejection, no mutation.
	placed, err := svc.PlaceBid(ctx, "a1", auction.Bid{Price: 50, Bidder: "b1"})
	if err != nil {
		t.Fatal(err)
	}

	if placed.Accepted {
		t.Error("bid at initial price accepted")
	}

	if want, have := 50.0, placed.Floor; want != have {
		t.Errorf("floor: want %v, have %v", want, have)
	}

	if want, have := 0, len(placed.Auction.Bids); want != have {
		t.Errorf("bids after rejection: want %d, have %d", want, have)
	}

	// Strictly above: accepted.
	placed, err = svc.PlaceBid(ctx, "a1", auction.Bid{Price: 60, Bidder: "b1"})
	if err != nil {
		t.Fatal(err)
	}

	if !placed.Accepted {
		t.Error("bid above floor rejected")
	}

	// Equal to the standing high bid: soft rejection, floor reported.
	placed, err = svc.PlaceBid(ctx, "a1", auction.Bid{Price: 60, Bidder: "b2"})
	if err != nil {
		t.Fatal(err)
	}

	if placed.Accepted {
		t.Error("tie bid accepted")
	}

	if want, have := 60.0, placed.Floor; want != have {
		t.Errorf("floor: want %v, have %v", want, have)
	}

	got, err := svc.Get(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}

	want := []auction.Bid{{Price: 60, Bidder: "b1"}}
	if diff := cmp.Diff(want, got.Bids); diff != "" {
		t.Errorf("bids mismatch (-want +have):\n%s", diff)
	}
}

func TestPlaceBidValidation(t *testing.T) {
	ctx := context.Background()
	svc := auction.NewCoreService(memstore.NewStore())

	if _, err := svc.Create(ctx, "a1", "widget", "c1", 50); err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		name string
		id   string
		bid  auction.Bid
	}{
		{"missing ID", "", auction.Bid{Price: 60, Bidder: "b1"}},
		{"missing bidder", "a1", auction.Bid{Price: 60}},
		{"NaN price", "a1", auction.Bid{Price: math.NaN(), Bidder: "b1"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.PlaceBid(ctx, tc.id, tc.bid)
			if !errors.Is(err, auction.ErrInvalidArgument) {
				t.Errorf("want ErrInvalidArgument, have %v", err)
			}
		})
	}
}

func TestPlaceBidOnClosedAuction(t *testing.T) {
	ctx := context.Background()
	svc := auction.NewCoreService(memstore.NewStore())

	if _, err := svc.Create(ctx, "a1", "widget", "c1", 50); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.PlaceBid(ctx, "a1", auction.Bid{Price: 60, Bidder: "b1"}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Close(ctx, "a1", "c1"); err != nil {
		t.Fatal(err)
	}

	_, err := svc.PlaceBid(ctx, "a1", auction.Bid{Price: 70, Bidder: "b2"})
	if !errors.Is(err, auction.ErrAuctionClosed) {
		t.Errorf("want ErrAuctionClosed, have %v", err)
	}
}

func TestCloseAuthorization(t *testing.T) {
	ctx := context.Background()
	svc := auction.NewCoreService(memstore.NewStore())

	if _, err := svc.Create(ctx, "a1", "widget", "c1", 50); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.PlaceBid(ctx, "a1", auction.Bid{Price: 60, Bidder: "b1"}); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Close(ctx, "a1", "someone-else")
	if !errors.Is(err, auction.ErrUnauthorized) {
		t.Errorf("want ErrUnauthorized, have %v", err)
	}

	got, err := svc.Get(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}

	if got.Closed() {
		t.Error("auction closed by non-creator")
	}
}

func TestCloseNoBids(t *testing.T) {
	ctx := context.Background()
	svc := auction.NewCoreService(memstore.NewStore())

	if _, err := svc.Create(ctx, "a1", "widget", "c1", 50); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Close(ctx, "a1", "c1")
	if !errors.Is(err, auction.ErrNoBids) {
		t.Errorf("want ErrNoBids, have %v", err)
	}

	got, err := svc.Get(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}

	if got.Closed() {
		t.Error("auction closed with zero bids")
	}
}

func TestCloseTwice(t *testing.T) {
	ctx := context.Background()
	svc := auction.NewCoreService(memstore.NewStore())

	if _, err := svc.Create(ctx, "a1", "widget", "c1", 50); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.PlaceBid(ctx, "a1", auction.Bid{Price: 60, Bidder: "b1"}); err != nil {
		t.Fatal(err)
	}

	closed, err := svc.Close(ctx, "a1", "c1")
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Close(ctx, "a1", "c1")
	if !errors.Is(err, auction.ErrAlreadyClosed) {
		t.Errorf("want ErrAlreadyClosed, have %v", err)
	}

	got, err := svc.Get(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(closed.Winner, got.Winner); diff != "" {
		t.Errorf("winner changed on second close (-first +now):\n%s", diff)
	}
}

func TestCloseMissing(t *testing.T) {
	ctx := context.Background()
	svc := auction.NewCoreService(memstore.NewStore())

	_, err := svc.Close(ctx, "nope", "c1")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("want ErrNotFound, have %v", err)
	}
}

func TestWinnerIsEarliestHighBid(t *testing.T) {
	ctx := context.Background()
	svc := auction.NewCoreService(memstore.NewStore())

	if _, err := svc.Create(ctx, "a1", "widget", "c1", 50); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.PlaceBid(ctx, "a1", auction.Bid{Price: 100, Bidder: "a"}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.PlaceBid(ctx, "a1", auction.Bid{Price: 120, Bidder: "b"}); err != nil {
		t.Fatal(err)
	}

	placed, err := svc.PlaceBid(ctx, "a1", auction.Bid{Price: 120, Bidder: "c"})
	if err != nil {
		t.Fatal(err)
	}

	if placed.Accepted {
		t.Fatal("tie bid accepted")
	}

	closed, err := svc.Close(ctx, "a1", "c1")
	if err != nil {
		t.Fatal(err)
	}

	want := &auction.Bid{Price: 120, Bidder: "b"}
	if diff := cmp.Diff(want, closed.Winner); diff != "" {
		t.Errorf("winner mismatch (-want +have):\n%s", diff)
	}
}

func TestFullLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := auction.NewCoreService(memstore.NewStore())

	if _, err := svc.Create(ctx, "a1", "a rare widget", "C1", 50); err != nil {
		t.Fatal(err)
	}

	placed, err := svc.PlaceBid(ctx, "a1", auction.Bid{Price: 60, Bidder: "B1"})
	if err != nil {
		t.Fatal(err)
	}
	if !placed.Accepted {
		t.Fatal("60 rejected")
	}

	placed, err = svc.PlaceBid(ctx, "a1", auction.Bid{Price: 55, Bidder: "B2"})
	if err != nil {
		t.Fatal(err)
	}
	if placed.Accepted {
		t.Fatal("55 accepted over a standing 60")
	}

	placed, err = svc.PlaceBid(ctx, "a1", auction.Bid{Price: 70, Bidder: "B2"})
	if err != nil {
		t.Fatal(err)
	}
	if !placed.Accepted {
		t.Fatal("70 rejected")
	}

	closed, err := svc.Close(ctx, "a1", "C1")
	if err != nil {
		t.Fatal(err)
	}

	want := &auction.Bid{Price: 70, Bidder: "B2"}
	if diff := cmp.Diff(want, closed.Winner); diff != "" {
		t.Errorf("winner mismatch (-want +have):\n%s", diff)
	}

	if _, err = svc.Close(ctx, "a1", "C1"); !errors.Is(err, auction.ErrAlreadyClosed) {
		t.Errorf("want ErrAlreadyClosed, have %v", err)
	}
}

func TestConcurrentBids(t *testing.T) {
	ctx := context.Background()
	svc := auction.NewCoreService(memstore.NewStore())

	if _, err := svc.Create(ctx, "a1", "widget", "c1", 0); err != nil {
		t.Fatal(err)
	}

	// Strictly increasing prices, submitted concurrently. Every bid either
	// lands or is soft-rejected; none may be lost to a stale write.
	const n = 50

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)

	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(price float64) {
			defer wg.Done()

			placed, err := svc.PlaceBid(ctx, "a1", auction.Bid{Price: price, Bidder: fmt.Sprintf("b%f", price)})
			if err != nil {
				t.Error(err)
				return
			}

			if placed.Accepted {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(float64(i))
	}

	wg.Wait()

	got, err := svc.Get(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}

	if want, have := accepted, len(got.Bids); want != have {
		t.Errorf("recorded bids: want %d, have %d", want, have)
	}

	for i := 1; i < len(got.Bids); i++ {
		if got.Bids[i].Price <= got.Bids[i-1].Price {
			t.Errorf("bid %d (%v) not above bid %d (%v)", i, got.Bids[i].Price, i-1, got.Bids[i-1].Price)
		}
	}
}
