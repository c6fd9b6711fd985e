package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TreasuryMetrics records payout attempts and revenue ingestion volume.
type TreasuryMetrics struct {
	payoutDuration *prometheus.HistogramVec
	payouts        *prometheus.CounterVec
	revenueEntries *prometheus.CounterVec
	pendingBalance prometheus.Gauge
}

// NewTreasuryMetrics registers the treasury metrics on the provided registerer.
func NewTreasuryMetrics(reg prometheus.Registerer) *TreasuryMetrics {
	if reg == nil {
		return &TreasuryMetrics{}
	}
	payoutDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payout_duration_seconds",
		Help:    "Duration of payout attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	payouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payouts_total",
		Help: "Payout attempts by outcome (completed, failed, skipped).",
	}, []string{"outcome"})
	revenueEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "revenue_entries_total",
		Help: "Revenue entries recorded by type.",
	}, []string{"type"})
	pendingBalance := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pending_balance_cents",
		Help: "Commission collected but not yet paid out, in cents.",
	})
	reg.MustRegister(payoutDuration, payouts, revenueEntries, pendingBalance)
	return &TreasuryMetrics{
		payoutDuration: payoutDuration,
		payouts:        payouts,
		revenueEntries: revenueEntries,
		pendingBalance: pendingBalance,
	}
}

// ObservePayout records one payout attempt with its duration.
func (t *TreasuryMetrics) ObservePayout(outcome string, duration time.Duration) {
	if t == nil || t.payoutDuration == nil {
		return
	}
	label := normalizeLabel(outcome)
	t.payoutDuration.WithLabelValues(label).Observe(duration.Seconds())
	t.payouts.WithLabelValues(label).Inc()
}

// IncRevenueEntry counts a recorded revenue entry.
func (t *TreasuryMetrics) IncRevenueEntry(entryType string) {
	if t == nil || t.revenueEntries == nil {
		return
	}
	t.revenueEntries.WithLabelValues(normalizeLabel(entryType)).Inc()
}

// SetPendingBalance publishes the current pending balance.
func (t *TreasuryMetrics) SetPendingBalance(cents int64) {
	if t == nil || t.pendingBalance == nil {
		return
	}
	t.pendingBalance.Set(float64(cents))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
