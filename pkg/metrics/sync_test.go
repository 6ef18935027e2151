package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestSyncMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewSyncMetrics(reg)
	metrics.ObserveSync("applied", 120*time.Millisecond)
	metrics.ObserveSync("failed", 80*time.Millisecond)
	metrics.IncStaleDrop()
	metrics.IncPriceParseFailure()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "cart_sync_total", "outcome", "applied"); err != nil {
		t.Fatalf("fetch applied: %v", err)
	} else if got != 1 {
		t.Fatalf("expected applied=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "cart_sync_total", "outcome", "failed"); err != nil {
		t.Fatalf("fetch failed: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failed=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "cart_sync_duration_seconds", "outcome", "applied"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	if mf := findMetricFamily(mfs, "cart_sync_stale_responses_total"); mf == nil {
		t.Fatal("stale drop counter not registered")
	} else if mf.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatal("expected one stale drop")
	}
}

func TestNilRegistererIsSafe(t *testing.T) {
	metrics := NewSyncMetrics(nil)
	metrics.ObserveSync("applied", time.Millisecond)
	metrics.IncStaleDrop()
	metrics.IncPriceParseFailure()
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
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(pairs []*dto.LabelPair, label, value string) bool {
	for _, pair := range pairs {
		if pair.GetName() == label && pair.GetValue() == value {
			return true
		}
	}
	return false
}
