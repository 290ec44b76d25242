package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	backtestsTotal        *prometheus.CounterVec
	backtestDuration      prometheus.Histogram
	tradesTotal           *prometheus.CounterVec
	optimizationsTotal    *prometheus.CounterVec
	optimizationDuration  prometheus.Histogram
	combinationsEvaluated *prometheus.CounterVec
	fetchesTotal          *prometheus.CounterVec
	cacheLookups          *prometheus.CounterVec
	jobsActive            *prometheus.GaugeVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_backtests_total",
			Help: "Total number of backtest runs",
		},
		[]string{"status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "momentum_backtest_duration_seconds",
			Help:    "Backtest run duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
	r.tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_simulated_trades_total",
			Help: "Total number of simulated trades",
		},
		[]string{"type", "reason"},
	)
	r.optimizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_optimizations_total",
			Help: "Total number of grid searches",
		},
		[]string{"status"},
	)
	r.optimizationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "momentum_optimization_duration_seconds",
			Help:    "Grid search duration in seconds",
			Buckets: []float64{0.1, 1, 5, 10, 30, 60, 120, 300},
		},
	)
	r.combinationsEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_optimizer_combinations_total",
			Help: "Total number of parameter combinations evaluated",
		},
		[]string{"status"},
	)
	r.fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_candle_fetches_total",
			Help: "Total number of candle fetches by source and outcome",
		},
		[]string{"source", "status"},
	)
	r.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_candle_cache_lookups_total",
			Help: "Candle cache lookups by result",
		},
		[]string{"result"},
	)
	r.jobsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "momentum_jobs_active",
			Help: "Number of active jobs",
		},
		[]string{"type"},
	)

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.optimizationsTotal)
	reg.MustRegister(r.optimizationDuration)
	reg.MustRegister(r.combinationsEvaluated)
	reg.MustRegister(r.fetchesTotal)
	reg.MustRegister(r.cacheLookups)
	reg.MustRegister(r.jobsActive)

	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{Registry: r.Registry})
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordTrade records one simulated trade.
func (r *Registry) RecordTrade(tradeType, reason string) {
	r.tradesTotal.WithLabelValues(tradeType, reason).Inc()
}

// RecordOptimization records a finished grid search.
func (r *Registry) RecordOptimization(status string, duration float64) {
	r.optimizationsTotal.WithLabelValues(status).Inc()
	r.optimizationDuration.Observe(duration)
}

// RecordCombination records one evaluated parameter combination.
func (r *Registry) RecordCombination(status string) {
	r.combinationsEvaluated.WithLabelValues(status).Inc()
}

// RecordFetch records a candle fetch outcome.
func (r *Registry) RecordFetch(source, status string) {
	r.fetchesTotal.WithLabelValues(source, status).Inc()
}

// RecordCacheLookup records a candle cache hit or miss.
func (r *Registry) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// SetJobsActive sets the number of active jobs of a type.
func (r *Registry) SetJobsActive(jobType string, count int) {
	r.jobsActive.WithLabelValues(jobType).Set(float64(count))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
