package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa los instrumentos Prometheus del servicio sobre un registro propio.
// Todos los metodos aceptan receptor nil.
type Metrics struct {
	registry *prometheus.Registry

	Replies            *prometheus.CounterVec
	ReplyLatency       prometheus.Histogram
	SafetyTrips        *prometheus.CounterVec
	RetrievalHits      prometheus.Histogram
	RetrievalErrors    prometheus.Counter
	PersonalityUpdates *prometheus.CounterVec
	ChatRateLimited    prometheus.Counter
	WSMessages         *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Replies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Composed replies by intent.",
		}, []string{"intent"}),
		ReplyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reply_latency_ms",
			Help:      "Time to compose a reply in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
		SafetyTrips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "safety_trips_total",
			Help:      "Safety filter activations by stage and category.",
		}, []string{"stage", "category"}),
		RetrievalHits: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_hits",
			Help:      "Evidence snippets returned per reply.",
			Buckets:   []float64{0, 1, 2, 3, 5},
		}),
		RetrievalErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_errors_total",
			Help:      "Evidence retrieval failures.",
		}),
		PersonalityUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "personality_updates_total",
			Help:      "Personality updates by result.",
		}, []string{"result"}),
		ChatRateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_rate_limited_total",
			Help:      "Chat messages rejected by the rate limiter.",
		}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket chat messages by direction.",
		}, []string{"direction"}),
	}
}

func (m *Metrics) ObserveReply(intent string, d time.Duration) {
	if m == nil {
		return
	}
	m.Replies.WithLabelValues(intent).Inc()
	m.ReplyLatency.Observe(float64(d.Microseconds()) / 1000)
}

func (m *Metrics) ObserveSafety(stage, category string) {
	if m == nil {
		return
	}
	m.SafetyTrips.WithLabelValues(stage, category).Inc()
}

func (m *Metrics) ObserveRetrieval(hits int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.RetrievalErrors.Inc()
	}
	m.RetrievalHits.Observe(float64(hits))
}

func (m *Metrics) ObserveUpdate(result string) {
	if m == nil {
		return
	}
	m.PersonalityUpdates.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.ChatRateLimited.Inc()
}

func (m *Metrics) ObserveWSMessage(direction string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction).Inc()
}

// Handler expone el registro propio en formato Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
