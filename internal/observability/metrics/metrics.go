package metrics

import "github.com/prometheus/client_golang/prometheus"

// DialogMetrics exposes counters/histograms for the messaging and booking flows.
type DialogMetrics struct {
	inboundTotal      *prometheus.CounterVec
	outboundTotal     *prometheus.CounterVec
	webhookLatency    *prometheus.HistogramVec
	reservationsTotal *prometheus.CounterVec
	takeoversTotal    prometheus.Counter
}

func NewDialogMetrics(reg prometheus.Registerer) *DialogMetrics {
	m := &DialogMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healthgpt",
			Subsystem: "messaging",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound WhatsApp webhooks",
		}, []string{"event_type", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healthgpt",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound WhatsApp sends",
		}, []string{"status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "healthgpt",
			Subsystem: "messaging",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of WhatsApp webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		reservationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healthgpt",
			Subsystem: "booking",
			Name:      "reservations_total",
			Help:      "Total slot reservations by outcome",
		}, []string{"outcome"}),
		takeoversTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "healthgpt",
			Subsystem: "booking",
			Name:      "human_takeovers_total",
			Help:      "Total dialogs escalated to staff",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.webhookLatency, m.reservationsTotal, m.takeoversTotal)
	return m
}

func (m *DialogMetrics) ObserveInbound(eventType, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(eventType, status).Inc()
}

func (m *DialogMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

func (m *DialogMetrics) ObserveWebhookLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}

func (m *DialogMetrics) ObserveReservation(outcome string) {
	if m == nil {
		return
	}
	m.reservationsTotal.WithLabelValues(outcome).Inc()
}

func (m *DialogMetrics) ObserveTakeover() {
	if m == nil {
		return
	}
	m.takeoversTotal.Inc()
}
