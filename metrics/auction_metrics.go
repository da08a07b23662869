package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var AuctionsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "peerbid",
	Name:      "auctions_created_total",
	Help:      "Total number of auction creation requests handled by the node.",
}, []string{"result"})

var BidsSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "peerbid",
	Name:      "bids_submitted_total",
	Help:      "Total number of bids submitted to the node.",
}, []string{"result"})

var AuctionsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "peerbid",
	Name:      "auctions_closed_total",
	Help:      "Total number of auction close requests handled by the node.",
}, []string{"result"})

var NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "peerbid",
	Name:      "notifications_sent_total",
	Help:      "Closure notification delivery attempts, per outcome.",
}, []string{"result"})

var BroadcastRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "peerbid",
	Name:      "broadcast_requests_total",
	Help:      "Per-peer outcomes of dispatcher broadcasts.",
}, []string{"method", "result"})

var RegisteredClients = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "peerbid",
	Name:      "registered_clients",
	Help:      "Number of peers currently registered for closure notifications.",
})

var AuctionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "peerbid",
	Name:      "auctions",
	Help:      "Number of auctions in the store, by status.",
}, []string{"status"})

// Bid counts are aggregated by auction status rather than labeled by auction
// ID, which would grow the series set without bound.
var BidsRecorded = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "peerbid",
	Name:      "bids_recorded",
	Help:      "Number of bids recorded in the store, by auction status.",
}, []string{"status"})
