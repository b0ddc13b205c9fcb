package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
)

// Metrics owns the process's prometheus registry. All methods are safe on a
// nil receiver so callers never need to check whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge
	apiStreams  *prometheus.GaugeVec

	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec

	generationLatency *prometheus.HistogramVec
	generationTotal   *prometheus.CounterVec

	mediaJobs     *prometheus.GaugeVec
	mediaOutcomes *prometheus.CounterVec
	mediaPolls    *prometheus.CounterVec

	intentDecisions *prometheus.CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Current() *Metrics {
	return instance
}

// Init builds the global Metrics once. enabled=false leaves Current() nil.
func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("prometheus metrics initialized")
		}
	})
	return instance
}

// NewMetrics builds a Metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nc_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nc_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"method", "route"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nc_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		apiStreams: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nc_api_open_streams",
			Help: "Open server-sent event streams by route.",
		}, []string{"route"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nc_llm_requests_total",
			Help: "LLM provider requests by endpoint/status.",
		}, []string{"endpoint", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nc_llm_request_duration_seconds",
			Help:    "LLM provider request latency including retries.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}, []string{"endpoint"}),
		generationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nc_generation_duration_seconds",
			Help:    "Module content generation latency by module type.",
			Buckets: []float64{0.05, 0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"module_type"}),
		generationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nc_generation_total",
			Help: "Module generations by module type and outcome.",
		}, []string{"module_type", "outcome"}),
		mediaJobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nc_media_jobs",
			Help: "Media jobs currently tracked by state.",
		}, []string{"state"}),
		mediaOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nc_media_job_outcomes_total",
			Help: "Terminal media job outcomes by kind.",
		}, []string{"kind", "outcome"}),
		mediaPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nc_media_polls_total",
			Help: "Media status reads by source (background|manual).",
		}, []string{"source"}),
		intentDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nc_intent_decisions_total",
			Help: "Intent router decisions by action and source.",
		}, []string{"action", "source"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiStreams,
		m.llmRequests, m.llmLatency,
		m.generationLatency, m.generationTotal,
		m.mediaJobs, m.mediaOutcomes, m.mediaPolls,
		m.intentDecisions,
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// StreamOpened tracks a long-lived stream; call the returned func on close.
func (m *Metrics) StreamOpened(route string) func() {
	if m == nil {
		return func() {}
	}
	g := m.apiStreams.WithLabelValues(route)
	g.Inc()
	return g.Dec
}

// CountAPI records a request without a latency sample.
func (m *Metrics) CountAPI(method, route, status string) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
}

func (m *Metrics) ObserveLLMRequest(endpoint, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(endpoint, status).Inc()
	m.llmLatency.WithLabelValues(endpoint).Observe(dur.Seconds())
}

// ObserveGeneration records one dispatcher call. outcome is "ok", "media" or "error".
func (m *Metrics) ObserveGeneration(moduleType, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.generationLatency.WithLabelValues(moduleType).Observe(dur.Seconds())
	m.generationTotal.WithLabelValues(moduleType, outcome).Inc()
}

// SetMediaJobs replaces the per-state gauge with counts.
func (m *Metrics) SetMediaJobs(counts map[string]int) {
	if m == nil {
		return
	}
	m.mediaJobs.Reset()
	for state, n := range counts {
		m.mediaJobs.WithLabelValues(state).Set(float64(n))
	}
}

func (m *Metrics) IncMediaOutcome(kind, outcome string) {
	if m == nil {
		return
	}
	m.mediaOutcomes.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncMediaPoll(source string) {
	if m == nil {
		return
	}
	m.mediaPolls.WithLabelValues(source).Inc()
}

func (m *Metrics) IncIntentDecision(action, source string) {
	if m == nil {
		return
	}
	m.intentDecisions.WithLabelValues(action, source).Inc()
}
