package metrics

import "time"

// BlockSink adapts Metrics to the block package's MetricsSink interface,
// keeping internal/block free of a direct dependency on prometheus.
type BlockSink struct {
	m *Metrics
}

// NewBlockSink wraps m for use as a block.MetricsSink.
func NewBlockSink(m *Metrics) *BlockSink {
	return &BlockSink{m: m}
}

func (s *BlockSink) IncBlockCount() {
	s.m.BlockCount.Inc()
}

func (s *BlockSink) ObserveBlockTime(d time.Duration) {
	s.m.BlockTime.Observe(d.Seconds())
}

func (s *BlockSink) IncReorgCount() {
	s.m.ReorgCount.Inc()
}
