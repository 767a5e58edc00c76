package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	dispatchTotal   *prometheus.CounterVec
	syncBatches     *prometheus.CounterVec
	syncFailures    *prometheus.CounterVec
	syncDuration    *prometheus.HistogramVec
	loadDuration    prometheus.Histogram
	loadFailures    prometheus.Counter
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "invoicing_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		dispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicing_dispatch_total",
				Help: "Total actions applied to the local state.",
			},
			[]string{"action"},
		),
		syncBatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicing_sync_batches_total",
				Help: "Remote sync batches by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		syncFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicing_sync_failures_total",
				Help: "Failed remote mutations by table and operation.",
			},
			[]string{"table", "op"},
		),
		syncDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "invoicing_sync_mutation_duration_seconds",
				Help:    "Duration of remote mutations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"table", "op"},
		),
		loadDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "invoicing_load_duration_seconds",
				Help:    "Duration of full account data loads.",
				Buckets: prometheus.DefBuckets,
			},
		),
		loadFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "invoicing_load_failures_total",
				Help: "Total failed account data loads.",
			},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicing_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicing_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicing_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrDispatch counts an applied action.
func (m *Metrics) IncrDispatch(action string) {
	m.dispatchTotal.WithLabelValues(action).Inc()
}

// IncrSyncBatch counts a finished sync batch. outcome is "ok" or "failed".
func (m *Metrics) IncrSyncBatch(action, outcome string) {
	m.syncBatches.WithLabelValues(action, outcome).Inc()
}

// RecordSyncMutation observes one remote mutation and counts it when it failed.
func (m *Metrics) RecordSyncMutation(table, op string, d time.Duration, failed bool) {
	m.syncDuration.WithLabelValues(table, op).Observe(d.Seconds())
	if failed {
		m.syncFailures.WithLabelValues(table, op).Inc()
	}
}

// RecordLoad observes a full data load.
func (m *Metrics) RecordLoad(d time.Duration, failed bool) {
	m.loadDuration.Observe(d.Seconds())
	if failed {
		m.loadFailures.Inc()
	}
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// SyncStats summarises remote sync health for GET /v1/sync/status.
type SyncStats struct {
	BatchesOK        int64 `json:"batchesOk"`
	BatchesFailed    int64 `json:"batchesFailed"`
	LoadFailures     int64 `json:"loadFailures"`
	TokenCacheHits   int64 `json:"tokenCacheHits"`
	TokenCacheMisses int64 `json:"tokenCacheMisses"`
}

// SyncSnapshot gathers the current counter values.
// Prometheus counters expose cumulative values since process start.
func (m *Metrics) SyncSnapshot() SyncStats {
	var ok, failed float64
	for _, mf := range gather(m.Registry, "invoicing_sync_batches_total") {
		for _, metric := range mf.GetMetric() {
			outcome := ""
			for _, l := range metric.GetLabel() {
				if l.GetName() == "outcome" {
					outcome = l.GetValue()
				}
			}
			switch outcome {
			case "ok":
				ok += metric.GetCounter().GetValue()
			case "failed":
				failed += metric.GetCounter().GetValue()
			}
		}
	}

	return SyncStats{
		BatchesOK:        int64(ok),
		BatchesFailed:    int64(failed),
		LoadFailures:     int64(counterValue(m.loadFailures)),
		TokenCacheHits:   int64(getCounterValue(m.cacheHits, "token")),
		TokenCacheMisses: int64(getCounterValue(m.cacheMisses, "token")),
	}
}

func gather(reg *prometheus.Registry, name string) []*dto.MetricFamily {
	families, err := reg.Gather()
	if err != nil {
		return nil
	}
	var out []*dto.MetricFamily
	for _, f := range families {
		if f.GetName() == name {
			out = append(out, f)
		}
	}
	return out
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return counterValue(cv.WithLabelValues(label))
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
