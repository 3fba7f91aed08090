package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNewRegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 4)
}

func TestCountersIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.BlockCount.Inc()
	m.BlockCount.Inc()
	require.Equal(t, float64(2), counterValue(t, m.BlockCount))

	m.ReorgCount.Inc()
	require.Equal(t, float64(1), counterValue(t, m.ReorgCount))

	m.ProcessedMempool.Inc()
	require.Equal(t, float64(1), counterValue(t, m.ProcessedMempool))
}

func TestBlockTimeObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.BlockTime.Observe(time.Millisecond.Seconds())

	var out dto.Metric
	require.NoError(t, m.BlockTime.Write(&out))
	require.Equal(t, uint64(1), out.GetHistogram().GetSampleCount())
}
