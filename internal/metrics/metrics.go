package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the Prometheus instruments of the chat engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry
	models   map[string]struct{}

	SessionsCreated   prometheus.Counter
	MessagesAppended  *prometheus.CounterVec
	RateLimited       prometheus.Counter
	UpstreamRequests  *prometheus.CounterVec
	UpstreamLatency   prometheus.Histogram
	UsagePublishFails prometheus.Counter
}

// OtherModel labels upstream calls for models outside the configured set.
const OtherModel = "other"

// New builds the instruments on a private registry. knownModels are kept as
// upstream label values; any other model is reported as OtherModel.
func New(namespace string, knownModels ...string) *Metrics {
	models := make(map[string]struct{}, len(knownModels))
	for _, name := range knownModels {
		if name != "" {
			models[name] = struct{}{}
		}
	}


	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		models:   models,
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Chat sessions created.",
		}),
		MessagesAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_appended_total",
			Help:      "Messages persisted by role.",
		}, []string{"role"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Message sends rejected by the rate gate.",
		}),
		UpstreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Inference backend calls by model and outcome.",
		}, []string{"model", "outcome"}),
		UpstreamLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_latency_seconds",
			Help:      "Inference backend round-trip latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		}),
		UsagePublishFails: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_publish_failures_total",
			Help:      "Usage records that could not be queued.",
		}),
	}
}

func (m *Metrics) IncSessionsCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

func (m *Metrics) IncMessage(role string) {
	if m == nil {
		return
	}
	m.MessagesAppended.WithLabelValues(role).Inc()
}

func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

func (m *Metrics) ObserveUpstream(model, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(m.modelLabel(model), outcome).Inc()
	m.UpstreamLatency.Observe(d.Seconds())
}

func (m *Metrics) modelLabel(model string) string {
	if _, ok := m.models[model]; ok {
		return model
	}
	return OtherModel
}

func (m *Metrics) IncUsagePublishFailure() {
	if m == nil {
		return
	}
	m.UsagePublishFails.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
