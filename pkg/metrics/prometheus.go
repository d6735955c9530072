package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records analysis engine and HTTP metrics on its own registry.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	analyses         *prometheus.CounterVec
	analysisErrors   *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	similarPeriods   prometheus.Histogram
	regimes          *prometheus.CounterVec
	insufficient     *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder with a private registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		analyses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "histpos_analyses_total",
				Help: "Total number of completed analyses",
			},
			[]string{"profile", "direction"},
		),
		analysisErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "histpos_analysis_errors_total",
				Help: "Total number of failed analyses",
			},
			[]string{"type"},
		),
		analysisDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "histpos_analysis_duration_seconds",
				Help:    "Duration of analysis stages in seconds",
				Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"stage"},
		),
		similarPeriods: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "histpos_similar_periods",
				Help:    "Number of similar periods found per analysis",
				Buckets: []float64{0, 1, 5, 10, 30, 100, 300, 1000},
			},
		),
		regimes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "histpos_regime_total",
				Help: "Market regimes classified",
			},
			[]string{"regime"},
		),
		insufficient: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "histpos_insufficient_data_total",
				Help: "Analyses that surfaced an insufficient-data condition",
			},
			[]string{"kind"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "histpos_cache_lookups_total",
				Help: "Result cache lookups",
			},
			[]string{"result"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "histpos_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "histpos_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
}

// Registry returns the underlying registry (tests, custom exporters).
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler returns the /metrics HTTP handler.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordAnalysis records a completed analysis.
func (r *Recorder) RecordAnalysis(profile, direction string) {
	if r == nil {
		return
	}
	r.analyses.WithLabelValues(profile, direction).Inc()
}

// RecordError records a failed analysis.
func (r *Recorder) RecordError(kind string) {
	if r == nil {
		return
	}
	r.analysisErrors.WithLabelValues(kind).Inc()
}

// RecordStage records stage latency in seconds.
func (r *Recorder) RecordStage(stage string, seconds float64) {
	if r == nil {
		return
	}
	r.analysisDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordSimilarPeriods records how many analogues were found.
func (r *Recorder) RecordSimilarPeriods(n int) {
	if r == nil {
		return
	}
	r.similarPeriods.Observe(float64(n))
}

// RecordRegime records a classified regime.
func (r *Recorder) RecordRegime(regime string) {
	if r == nil {
		return
	}
	r.regimes.WithLabelValues(regime).Inc()
}

// RecordInsufficient records an insufficient-data condition ("history", "regime", "risk").
func (r *Recorder) RecordInsufficient(kind string) {
	if r == nil {
		return
	}
	r.insufficient.WithLabelValues(kind).Inc()
}

// RecordCache records a cache lookup ("hit", "miss", "bypass", "error").
func (r *Recorder) RecordCache(result string) {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// RecordHTTP records one HTTP request.
func (r *Recorder) RecordHTTP(route, method, status string, seconds float64) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, status).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(seconds)
}
