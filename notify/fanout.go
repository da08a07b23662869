// Package notify delivers auction closure notifications to registered peers.
package notify

import (
	"context"
	"fmt"
	"time"

	"peerbid/metrics"
	"peerbid/peers"
	"peerbid/store"
	"peerbid/transport"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

const notifyMethod = "auctionClosedNotification"

// Delivery is the outcome of one notification attempt.
type Delivery struct {
	Peer peers.Peer
	Err  error
}

// Fanout pushes closure notifications to every peer in the registry. Peers
// are notified in parallel and failures are independent, a dead peer never
// blocks or fails delivery to the others.
type Fanout struct {
	registry *peers.Registry
	caller   transport.Caller
	selfID   string
	logger   log.Logger
}

func NewFanout(registry *peers.Registry, caller transport.Caller, selfID string, logger log.Logger) *Fanout {
	return &Fanout{
		registry: registry,
		caller:   caller,
		selfID:   selfID,
		logger:   logger,
	}
}

type notification struct {
	AuctionID string         `json:"auctionId"`
	Message   string         `json:"message"`
	Auction   *store.Auction `json:"auction"`
}

func newNotification(a *store.Auction) notification {
	n := notification{AuctionID: a.ID, Auction: a}
	if a.Winner != nil {
		n.Message = fmt.Sprintf("auction %s closed, winning bid %v by %s", a.ID, a.Winner.Price, a.Winner.Bidder)
	} else {
		n.Message = fmt.Sprintf("auction %s closed without a winner", a.ID)
	}
	return n
}

// AuctionClosed notifies every registered peer that the auction is settled.
// It returns the per-peer outcomes and an aggregate of the failures, which
// the caller is expected to log and otherwise ignore, notification delivery
// is best effort and never unwinds a settled auction.
func (f *Fanout) AuctionClosed(ctx context.Context, a *store.Auction) ([]Delivery, error) {
	began := time.Now()

	var (
		targets    = f.registry.List()
		deliveries = make([]Delivery, 0, len(targets))
		g, gctx    = errgroup.WithContext(ctx)
		results    = make(chan Delivery, len(targets))
	)

	for _, p := range targets {
		if p.ID == f.selfID {
			continue // don't call ourselves
		}

		p := p
		g.Go(func() error {
			_, err := f.caller.Call(gctx, p.Addr, notifyMethod, newNotification(a))
			metrics.NotificationsSentTotal.WithLabelValues(resultLabel(err)).Inc()
			results <- Delivery{Peer: p, Err: err}
			return nil // per-peer failures must not cancel the group
		})
	}

	g.Wait()
	close(results)

	var (
		merr   *multierror.Error
		failed int
	)
	for d := range results {
		deliveries = append(deliveries, d)
		if d.Err != nil {
			failed++
			merr = multierror.Append(merr, d.Err)
			level.Warn(f.logger).Log("auction_id", a.ID, "peer_id", d.Peer.ID, "err", d.Err)
		}
	}

	level.Debug(f.logger).Log(
		"auction_id", a.ID,
		"peers", len(deliveries),
		"failed", failed,
		"took", time.Since(began),
	)

	return deliveries, merr.ErrorOrNil()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
