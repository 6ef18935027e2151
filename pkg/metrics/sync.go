package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records outcomes of cart reconciliation runs.
type SyncMetrics struct {
	duration    *prometheus.HistogramVec
	outcomes    *prometheus.CounterVec
	staleDrops  prometheus.Counter
	priceParses prometheus.Counter
}

// NewSyncMetrics registers the reconciliation metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_sync_duration_seconds",
		Help:    "Duration of cart reconciliation runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_sync_total",
		Help: "Cart reconciliation runs by outcome.",
	}, []string{"outcome"})
	staleDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_sync_stale_responses_total",
		Help: "Sync responses discarded because a newer sync already applied.",
	})
	priceParses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_price_parse_failures_total",
		Help: "Line prices that could not be parsed and contributed zero.",
	})
	reg.MustRegister(duration, outcomes, staleDrops, priceParses)
	return &SyncMetrics{
		duration:    duration,
		outcomes:    outcomes,
		staleDrops:  staleDrops,
		priceParses: priceParses,
	}
}

// ObserveSync records one reconciliation run.
func (m *SyncMetrics) ObserveSync(outcome string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	label := normalizeLabel(outcome)
	m.duration.WithLabelValues(label).Observe(duration.Seconds())
	m.outcomes.WithLabelValues(label).Inc()
}

// IncStaleDrop counts a discarded out-of-order sync response.
func (m *SyncMetrics) IncStaleDrop() {
	if m == nil || m.staleDrops == nil {
		return
	}
	m.staleDrops.Inc()
}

// IncPriceParseFailure counts a line whose price could not be parsed.
func (m *SyncMetrics) IncPriceParseFailure() {
	if m == nil || m.priceParses == nil {
		return
	}
	m.priceParses.Inc()
}

func normalizeLabel(outcome string) string {
	if outcome == "" {
		return "unknown"
	}
	return outcome
}
