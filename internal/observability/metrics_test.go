package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.LedgerApplied("adjustment")
		m.LedgerRejectedFor("insufficient_balance")
		m.TradePlaced()
		m.TradeSettled("win")
		m.TradeCorrected()
		m.Accrued("mining")
		m.SweepFinished("ok", time.Second)
		m.Notified("ok")
		m.PriceFetched("error")
	})
}

func TestMetricsCount(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.TradeSettled("win")
	m.TradeSettled("win")
	m.TradeSettled("loss")
	m.SweepFinished("skipped", 0)
	m.SweepFinished("ok", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TradesSettled.WithLabelValues("win")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TradesSettled.WithLabelValues("loss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepRuns.WithLabelValues("skipped")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SweepDuration))
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker()
	assert.False(t, h.IsReady())
	h.SetReady(true)
	assert.True(t, h.IsReady())
	assert.GreaterOrEqual(t, h.Uptime(), time.Duration(0))
}
