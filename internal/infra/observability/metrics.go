package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
)

// Outcome labels for recurring firings.
const (
	RecurringFired   = "fired"
	RecurringSkipped = "skipped"
	RecurringFailed  = "failed"
)

const namespace = "tracker"

// Metrics owns a private registry so every NewMetrics call (one per test) is
// isolated. Registry is what /metrics serves.
type Metrics struct {
	Registry *prometheus.Registry

	requests        *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	ledgerMutations *prometheus.CounterVec
	recurring       *prometheus.CounterVec
	batchDuration   prometheus.Histogram
	lastBatch       prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}

	return &Metrics{
		Registry: reg,
		requests: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		externalErrors:  counter("external_errors_total", "Failed calls to the database or broker.", "service"),
		cacheLookups:    counter("cache_lookups_total", "Cache lookups by cache and result.", "cache", "result"),
		ledgerMutations: counter("ledger_mutations_total", "Committed ledger mutations by operation.", "op"),
		recurring:       counter("recurring_firings_total", "Recurring rule outcomes across batch runs.", "result"),
		batchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recurring_batch_duration_seconds",
			Help:      "Wall time of completed recurring batch runs.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60},
		}),
		lastBatch: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recurring_last_run_timestamp_seconds",
			Help:      "Unix time of the last completed recurring batch run.",
		}),
	}
}

func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requests.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheLookups.WithLabelValues(cache, "hit").Inc()
}

func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheLookups.WithLabelValues(cache, "miss").Inc()
}

// IncrLedgerMutation counts a committed create, update or delete.
func (m *Metrics) IncrLedgerMutation(op string) {
	m.ledgerMutations.WithLabelValues(op).Inc()
}

// IncrRecurring counts one rule outcome, one of the Recurring* labels.
func (m *Metrics) IncrRecurring(result string) {
	m.recurring.WithLabelValues(result).Inc()
}

// RecordRecurringRun marks a finished batch that ended at the given time.
func (m *Metrics) RecordRecurringRun(at time.Time, took time.Duration) {
	m.batchDuration.Observe(took.Seconds())
	m.lastBatch.Set(float64(at.Unix()))
}

// LedgerMutations returns the cumulative count for op.
func (m *Metrics) LedgerMutations(op string) float64 {
	return read(m.ledgerMutations.WithLabelValues(op)).GetCounter().GetValue()
}

// RecurringSnapshot reads the batch counters back for the admin stats route.
func (m *Metrics) RecurringSnapshot() *domain.RecurringStats {
	outcome := func(result string) int64 {
		return int64(read(m.recurring.WithLabelValues(result)).GetCounter().GetValue())
	}
	stats := &domain.RecurringStats{
		Fired:   outcome(RecurringFired),
		Skipped: outcome(RecurringSkipped),
		Failed:  outcome(RecurringFailed),
		Runs:    int64(read(m.batchDuration).GetHistogram().GetSampleCount()),
	}
	if stats.Runs > 0 {
		last := time.Unix(int64(read(m.lastBatch).GetGauge().GetValue()), 0).UTC()
		stats.LastRunAt = &last
	}
	return stats
}

// read snapshots a single collector. A failed write yields an empty metric,
// whose getters return zero.
func read(c prometheus.Metric) *dto.Metric {
	out := &dto.Metric{}
	if err := c.Write(out); err != nil {
		return &dto.Metric{}
	}
	return out
}
