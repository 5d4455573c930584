package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the settlement core. A nil
// *Metrics is valid and records nothing, so tests can skip registration.
type Metrics struct {
	// --- Ledger ---
	LedgerOps      *prometheus.CounterVec
	LedgerRejected *prometheus.CounterVec

	// --- Trades ---
	TradesPlaced  prometheus.Counter
	TradesSettled *prometheus.CounterVec
	Corrections   prometheus.Counter

	// --- Subscriptions ---
	Accruals *prometheus.CounterVec

	// --- Scheduler ---
	SweepRuns     *prometheus.CounterVec
	SweepDuration prometheus.Histogram

	// --- External ---
	Notifications *prometheus.CounterVec
	PriceFetches  *prometheus.CounterVec

	// --- HTTP ---
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LedgerOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_ledger_operations_total",
			Help: "Ledger operations applied, by transaction type",
		}, []string{"type"}),

		LedgerRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_ledger_rejected_total",
			Help: "Ledger operations rejected, by reason",
		}, []string{"reason"}),

		TradesPlaced: factory.NewCounter(prometheus.CounterOpts{
			Name: "settlement_trades_placed_total",
			Help: "Trades placed",
		}),

		TradesSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_trades_settled_total",
			Help: "Trades settled, by final outcome",
		}, []string{"outcome"}),

		Corrections: factory.NewCounter(prometheus.CounterOpts{
			Name: "settlement_trade_corrections_total",
			Help: "Administrative corrections applied to settled trades",
		}),

		Accruals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_accruals_total",
			Help: "Subscription reward accruals credited, by kind",
		}, []string{"kind"}),

		SweepRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_sweep_runs_total",
			Help: "Settlement sweeps, by result (ok, error, skipped)",
		}, []string{"result"}),

		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "settlement_sweep_duration_seconds",
			Help:    "Time to run one settlement sweep",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),

		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_notifications_total",
			Help: "Notification deliveries, by result",
		}, []string{"result"}),

		PriceFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_price_fetches_total",
			Help: "Price feed lookups, by result",
		}, []string{"result"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_http_requests_total",
			Help: "HTTP requests, by route and status code",
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) LedgerApplied(txType string) {
	if m == nil {
		return
	}
	m.LedgerOps.WithLabelValues(txType).Inc()
}

func (m *Metrics) LedgerRejectedFor(reason string) {
	if m == nil {
		return
	}
	m.LedgerRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) TradePlaced() {
	if m == nil {
		return
	}
	m.TradesPlaced.Inc()
}

func (m *Metrics) TradeSettled(outcome string) {
	if m == nil {
		return
	}
	m.TradesSettled.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TradeCorrected() {
	if m == nil {
		return
	}
	m.Corrections.Inc()
}

func (m *Metrics) Accrued(kind string) {
	if m == nil {
		return
	}
	m.Accruals.WithLabelValues(kind).Inc()
}

// SweepFinished records one sweep outcome and, unless it was skipped, its duration.
func (m *Metrics) SweepFinished(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SweepRuns.WithLabelValues(result).Inc()
	if result != "skipped" {
		m.SweepDuration.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) Notified(result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) PriceFetched(result string) {
	if m == nil {
		return
	}
	m.PriceFetches.WithLabelValues(result).Inc()
}

func (m *Metrics) HTTPRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
