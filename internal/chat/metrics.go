package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rejection reasons reported to clients and counted in metrics.
const (
	ReasonAddressInUse = "address_in_use"
	ReasonEmptyName    = "empty_name"
	ReasonNameInUse    = "name_in_use"
)

// Metrics collects chat counters. A nil *Metrics records nothing.
type Metrics struct {
	SessionsActive prometheus.Gauge
	Rejections     *prometheus.CounterVec
	Published      prometheus.Counter
	LaggingDropped prometheus.Counter
}

// NewMetrics registers the chat collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat",
			Name:      "sessions_active",
			Help:      "Sessions currently relaying messages.",
		}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "registrations_rejected_total",
			Help:      "Connections turned away during registration, by reason.",
		}, []string{"reason"}),
		Published: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Subsystem: "bus",
			Name:      "published_total",
			Help:      "Messages published to the broadcast bus.",
		}),
		LaggingDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Subsystem: "bus",
			Name:      "lagging_dropped_total",
			Help:      "Subscribers dropped because their queue was full.",
		}),
	}
}

func (m *Metrics) sessionStarted() {
	if m != nil {
		m.SessionsActive.Inc()
	}
}

func (m *Metrics) sessionEnded() {
	if m != nil {
		m.SessionsActive.Dec()
	}
}

func (m *Metrics) rejected(reason string) {
	if m != nil {
		m.Rejections.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) published() {
	if m != nil {
		m.Published.Inc()
	}
}

func (m *Metrics) laggingDropped() {
	if m != nil {
		m.LaggingDropped.Inc()
	}
}
