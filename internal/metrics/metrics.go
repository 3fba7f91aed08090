// Package metrics exposes the indexer's Prometheus metrics: block
// processing throughput, reorg frequency, and mempool churn.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// blockTimeBuckets matches the bucket boundaries (in seconds) the indexer
// reports block processing latency under.
var blockTimeBuckets = []float64{
	.005, .01, .025, .05, .075, .1, .25, .5, .75, 1, 2.5, 5, 7.5, 10, 15, 20, 30, 60,
}

// Metrics holds every counter/histogram the indexer emits.
type Metrics struct {
	BlockCount       prometheus.Counter
	BlockTime        prometheus.Histogram
	ReorgCount       prometheus.Counter
	ProcessedMempool prometheus.Counter
}

// New registers and returns a fresh Metrics against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BlockCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "klingnet_index",
			Name:      "block_count",
			Help:      "Number of blocks advanced.",
		}),
		BlockTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "klingnet_index",
			Name:      "block_time",
			Help:      "Time to advance one block, in seconds.",
			Buckets:   blockTimeBuckets,
		}),
		ReorgCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "klingnet_index",
			Name:      "reorg_count",
			Help:      "Number of reorgs handled.",
		}),
		ProcessedMempool: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "klingnet_index",
			Name:      "processed_mempool",
			Help:      "Number of mempool refresh cycles processed.",
		}),
	}
	reg.MustRegister(m.BlockCount, m.BlockTime, m.ReorgCount, m.ProcessedMempool)
	return m
}
