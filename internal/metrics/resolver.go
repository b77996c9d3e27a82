package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK      = "ok"
	OutcomeEmpty   = "empty"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"

	CacheHit  = "hit"
	CacheMiss = "miss"
)

// ResolverMetrics records price resolution latency and outcomes.
type ResolverMetrics struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
	cache    *prometheus.CounterVec
}

// NewResolverMetrics registers the resolver metrics on the provided registerer.
func NewResolverMetrics(reg prometheus.Registerer) *ResolverMetrics {
	if reg == nil {
		return &ResolverMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricing_resolve_duration_seconds",
		Help:    "Duration of price resolution calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"engine"})
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_resolve_total",
		Help: "Price resolution calls by outcome.",
	}, []string{"engine", "outcome"})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_cache_total",
		Help: "Price resolution cache lookups by result.",
	}, []string{"result"})
	reg.MustRegister(duration, total, cache)
	return &ResolverMetrics{
		duration: duration,
		total:    total,
		cache:    cache,
	}
}

// ObserveDuration records the duration of one resolution on engine.
func (m *ResolverMetrics) ObserveDuration(engine string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(engine)).Observe(d.Seconds())
}

// IncOutcome counts one resolution with the given outcome.
func (m *ResolverMetrics) IncOutcome(engine, outcome string) {
	if m == nil || m.total == nil {
		return
	}
	m.total.WithLabelValues(normalizeLabel(engine), normalizeLabel(outcome)).Inc()
}

// IncCache counts one cache lookup.
func (m *ResolverMetrics) IncCache(result string) {
	if m == nil || m.cache == nil {
		return
	}
	m.cache.WithLabelValues(normalizeLabel(result)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
