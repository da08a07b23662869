// Package dispatch broadcasts RPC requests to every known peer.
package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"peerbid/metrics"
	"peerbid/peers"
	"peerbid/transport"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gofrs/uuid"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one peer's leg of a broadcast.
type Result struct {
	Peer     peers.Peer
	Response json.RawMessage
	Err      error
}

// Dispatcher fans a single request out to all registered peers in parallel.
// Each leg succeeds or fails on its own, a broadcast never short-circuits on
// the first failure.
type Dispatcher struct {
	registry *peers.Registry
	caller   transport.Caller
	selfID   string
	logger   log.Logger
}

func NewDispatcher(registry *peers.Registry, caller transport.Caller, selfID string, logger log.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		caller:   caller,
		selfID:   selfID,
		logger:   logger,
	}
}

// Broadcast sends method with payload to every registered peer except
// ourselves, and returns one Result per peer contacted.
func (d *Dispatcher) Broadcast(ctx context.Context, method string, payload interface{}) []Result {
	began := time.Now()

	broadcastID := uuid.Must(uuid.NewV4()).String()

	var (
		targets = d.registry.List()
		g, gctx = errgroup.WithContext(ctx)
		results = make(chan Result, len(targets))
	)

	for _, p := range targets {
		if p.ID == d.selfID {
			continue
		}

		p := p
		g.Go(func() error {
			raw, err := d.caller.Call(gctx, p.Addr, method, payload)
			metrics.BroadcastRequestsTotal.WithLabelValues(method, resultLabel(err)).Inc()
			if err != nil {
				level.Warn(d.logger).Log("broadcast_id", broadcastID, "method", method, "peer_id", p.ID, "err", err)
			}
			results <- Result{Peer: p, Response: raw, Err: err}
			return nil
		})
	}

	g.Wait()
	close(results)

	all := make([]Result, 0, len(targets))
	for r := range results {
		all = append(all, r)
	}

	level.Debug(d.logger).Log(
		"broadcast_id", broadcastID,
		"method", method,
		"peers", len(all),
		"took", time.Since(began),
	)

	return all
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
