package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/mdr-backend/internal/platform/envutil"
	"github.com/yungbote/mdr-backend/internal/platform/logger"
)

const namespace = "mdr"

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	aggregateOps       *prometheus.HistogramVec
	aggregateConflicts *prometheus.CounterVec
	aggregateRetries   *prometheus.CounterVec

	valueResolutions *prometheus.CounterVec
	linksRepointed   *prometheus.CounterVec
	cascadeOutcomes  *prometheus.CounterVec
	projections      *prometheus.CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

// Init builds the process-wide metrics once.
func Init(log *logger.Logger) *Metrics {
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("metrics initialized")
		}
	})
	return instance
}

// New builds a metrics set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "HTTP requests by method, route, library kind and status.",
		}, []string{"method", "route", "kind", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_inflight_requests",
			Help:      "HTTP requests currently being served.",
		}),
		aggregateOps: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregate_operation_duration_seconds",
			Help:      "Versioned aggregate operations by op and outcome.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"op", "status"}),
		aggregateConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_conflicts_total",
			Help:      "Aggregate writes rejected by a concurrent change.",
		}, []string{"op"}),
		aggregateRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_retryable_total",
			Help:      "Aggregate operations failing with a retryable error.",
		}, []string{"op"}),
		valueResolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "value_resolutions_total",
			Help:      "Content values reused or created by edits and new versions.",
		}, []string{"kind", "outcome"}),
		linksRepointed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_repointed_total",
			Help:      "Incoming links moved to a target's new value.",
		}, []string{"kind", "rel"}),
		cascadeOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_branches_total",
			Help:      "Cascade branch outcomes by upstream kind.",
		}, []string{"kind", "outcome"}),
		projections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_projections_total",
			Help:      "Graph projection attempts by outcome.",
		}, []string{"status"}),
	}
}

func label(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}

func (m *Metrics) ObserveAPI(method, route, kind, status string, dur time.Duration) {
	if m == nil {
		return
	}
	route = label(route, "unmatched")
	m.apiRequests.WithLabelValues(method, route, label(kind, "none"), status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) ApiInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.WithLabelValues(label(op, "unknown"), label(status, "unknown")).Observe(dur.Seconds())
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m != nil {
		m.aggregateConflicts.WithLabelValues(label(op, "unknown")).Inc()
	}
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m != nil {
		m.aggregateRetries.WithLabelValues(label(op, "unknown")).Inc()
	}
}

func (m *Metrics) IncValueResolution(kind, outcome string) {
	if m == nil {
		return
	}
	m.valueResolutions.WithLabelValues(label(kind, "unknown"), label(outcome, "unknown")).Inc()
}

func (m *Metrics) AddLinksRepointed(kind, rel string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.linksRepointed.WithLabelValues(label(kind, "unknown"), label(rel, "unknown")).Add(float64(n))
}

func (m *Metrics) IncCascadeBranch(kind, outcome string) {
	if m != nil {
		m.cascadeOutcomes.WithLabelValues(label(kind, "unknown"), label(outcome, "unknown")).Inc()
	}
}

func (m *Metrics) IncProjection(status string) {
	if m != nil {
		m.projections.WithLabelValues(label(status, "unknown")).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests and embedding.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
