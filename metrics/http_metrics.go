package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Auction RPCs are local store reads and writes, so most requests land
	// well under 10ms; the tail buckets exist for the postgres backend and
	// for peers calling in over slow links.
	httpBuckets = []float64{
		0.0005, 0.001, 0.0025, 0.005, 0.0075, // sub-10ms, the common case
		0.010, 0.025, 0.050, 0.075, // 10ms - 75ms
		0.100, 0.250, 0.500, 0.750, // 100ms - 750ms
		1.000, 2.500, 5.000, // 1s - 5s+
	}

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "peerbid",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of served auction RPC and debug requests in seconds.",
		Buckets:   httpBuckets,
	}, []string{"route", "code"})
)
