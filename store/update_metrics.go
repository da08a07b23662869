package store

import (
	"context"
	"fmt"

	"peerbid/metrics"
)

func UpdateMetrics(ctx context.Context, s Store) error {
	auctions, err := s.ListAuctions(ctx)
	if err != nil {
		return fmt.Errorf("list auctions: %w", err)
	}

	var open, closed, openBids, closedBids float64
	for _, a := range auctions {
		switch {
		case a.Closed():
			closed++
			closedBids += float64(len(a.Bids))
		default:
			open++
			openBids += float64(len(a.Bids))
		}
	}

	metrics.AuctionsGauge.WithLabelValues("open").Set(open)
	metrics.AuctionsGauge.WithLabelValues("closed").Set(closed)
	metrics.BidsRecorded.WithLabelValues("open").Set(openBids)
	metrics.BidsRecorded.WithLabelValues("closed").Set(closedBids)

	return nil
}
