package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline metrics
	JobsTotal          *prometheus.CounterVec
	JobDuration        prometheus.Histogram
	JobStepFailures    *prometheus.CounterVec
	StockMisses        prometheus.Counter
	DegradedCOGS       prometheus.Counter
	QueueActiveWorkers prometheus.GaugeFunc

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Push metrics
	PushesTotal *prometheus.CounterVec
}

// NewMetrics creates the metrics on a private registry, so several instances can coexist in one
// process. activeWorkers may be nil.
func NewMetrics(activeWorkers func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,

		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "printcost_jobs_total",
				Help: "Total number of processing jobs finished, by outcome",
			},
			[]string{"status"},
		),

		JobDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "printcost_job_duration_seconds",
				Help:    "Duration of a processing job run",
				Buckets: prometheus.DefBuckets,
			},
		),

		JobStepFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "printcost_job_step_failures_total",
				Help: "Total number of pipeline step failures",
			},
			[]string{"step"},
		),

		StockMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "printcost_stock_misses_total",
				Help: "Stock decrements that matched no filament",
			},
		),

		DegradedCOGS: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "printcost_cogs_degraded_total",
				Help: "Jobs whose COGS could not be computed and were logged as zero",
			},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "printcost_http_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "printcost_http_request_duration_seconds",
				Help:    "Duration of HTTP request processing",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "printcost_cache_hits_total",
				Help: "Total number of response cache hits",
			},
		),

		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "printcost_cache_misses_total",
				Help: "Total number of response cache misses",
			},
		),

		PushesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "printcost_push_notifications_total",
				Help: "Total number of web push attempts, by result",
			},
			[]string{"result"},
		),
	}

	if activeWorkers != nil {
		m.QueueActiveWorkers = factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "printcost_queue_active_workers",
				Help: "Queue workers currently executing a job",
			},
			activeWorkers,
		)
	}

	return m
}

// ObserveJob records a finished job run.
func (m *Metrics) ObserveJob(status string, d time.Duration) {
	m.JobsTotal.WithLabelValues(status).Inc()
	m.JobDuration.Observe(d.Seconds())
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
