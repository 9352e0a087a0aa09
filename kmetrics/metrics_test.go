package kmetrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanokernel/kbuf"
	"nanokernel/kclock"
	"nanokernel/kdisk"
	"nanokernel/kpage"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestPageMetricsSampleReflectsFreeCountsAndSteals(t *testing.T) {
	const ncpu = 2
	a := kpage.NewAllocator(ncpu, 64, 64*4)
	reg := prometheus.NewRegistry()
	pm := NewPageMetrics(reg, a, ncpu)

	pm.Sample()
	assert.Equal(t, float64(4), gaugeValue(t, pm.FreeFrames.WithLabelValues("0")))
	assert.Equal(t, float64(0), gaugeValue(t, pm.FreeFrames.WithLabelValues("1")))
	assert.Equal(t, float64(0), counterValue(t, pm.Steals))

	// CPU 1's shard is empty, so this Alloc must steal from shard 0.
	f := a.Alloc(1)
	require.NotNil(t, f)
	pm.Sample()

	assert.Equal(t, float64(3), gaugeValue(t, pm.FreeFrames.WithLabelValues("0")))
	assert.Equal(t, float64(1), counterValue(t, pm.Steals))
}

func TestBufMetricsSampleAccumulatesDeltas(t *testing.T) {
	dev := kdisk.NewMemDevice(32)
	clk := kclock.NewSystemClock()
	c := kbuf.NewCache(4, 2, 32, dev, clk)
	reg := prometheus.NewRegistry()
	bm := NewBufMetrics(reg, c)

	ctx := context.Background()
	b, err := c.Read(ctx, 1, 0)
	require.NoError(t, err)
	c.Release(b)

	bm.Sample()
	assert.Equal(t, float64(0), counterValue(t, bm.Hits))
	assert.Equal(t, float64(1), counterValue(t, bm.Misses))

	b2, err := c.Read(ctx, 1, 0)
	require.NoError(t, err)
	c.Release(b2)

	bm.Sample()
	assert.Equal(t, float64(1), counterValue(t, bm.Hits))
	assert.Equal(t, float64(1), counterValue(t, bm.Misses))
}
