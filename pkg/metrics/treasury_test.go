package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestTreasuryMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewTreasuryMetrics(reg)
	metrics.ObservePayout("completed", 250*time.Millisecond)
	metrics.ObservePayout("failed", 100*time.Millisecond)
	metrics.IncRevenueEntry("sale")
	metrics.SetPendingBalance(1250)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "payouts_total", "outcome", "completed"); err != nil {
		t.Fatalf("fetch completed payouts: %v", err)
	} else if got != 1 {
		t.Fatalf("expected completed=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "payouts_total", "outcome", "failed"); err != nil {
		t.Fatalf("fetch failed payouts: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failed=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "revenue_entries_total", "type", "sale"); err != nil {
		t.Fatalf("fetch revenue entries: %v", err)
	} else if got != 1 {
		t.Fatalf("expected sale entries=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "payout_duration_seconds", "outcome", "completed"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	if got := fetchGaugeValue(mfs, "pending_balance_cents"); got != 1250 {
		t.Fatalf("expected pending balance 1250, got %f", got)
	}
}

func TestTreasuryMetricsNilRegisterer(t *testing.T) {
	metrics := NewTreasuryMetrics(nil)
	metrics.ObservePayout("completed", time.Second)
	metrics.IncRevenueEntry("sale")
	metrics.SetPendingBalance(100)
}

func TestTreasuryMetricsNormalizesEmptyLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewTreasuryMetrics(reg)
	metrics.IncRevenueEntry("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if _, err := fetchCounterValue(mfs, "revenue_entries_total", "type", "unknown"); err != nil {
		t.Fatalf("empty type should map to unknown label: %v", err)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func fetchGaugeValue(mfs []*dto.MetricFamily, name string) float64 {
	mf := findMetricFamily(mfs, name)
	if mf == nil || len(mf.GetMetric()) == 0 {
		return -1
	}
	return mf.GetMetric()[0].GetGauge().GetValue()
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
