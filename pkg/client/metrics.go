package client

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the client's prometheus collectors on a private registry,
// so several clients (or tests) never collide on the default one.
type Metrics struct {
	Registry *prometheus.Registry

	framesSent     prometheus.Counter
	framesReceived prometheus.Counter
	bytesSent      prometheus.Counter
	bytesReceived  prometheus.Counter
	frameErrors    prometheus.Counter
	queueDepth     prometheus.Gauge
	eventsPending  prometheus.Gauge
	handshakes     *prometheus.CounterVec
	events         *prometheus.CounterVec
}

// NewMetrics creates and registers all client collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marain",
			Name:      "frames_sent_total",
			Help:      "Encrypted frames written to the server.",
		}),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marain",
			Name:      "frames_received_total",
			Help:      "Frames read and decoded from the server.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marain",
			Name:      "bytes_sent_total",
			Help:      "Bytes written to the socket after the handshake.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marain",
			Name:      "bytes_received_total",
			Help:      "Bytes read from the socket after the handshake.",
		}),
		frameErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marain",
			Name:      "frame_errors_total",
			Help:      "Inbound frames dropped because they failed to decrypt or decode.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "marain",
			Name:      "send_queue_depth",
			Help:      "Frames waiting in the outbound queue.",
		}),
		eventsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "marain",
			Name:      "events_pending",
			Help:      "Events merged but not yet taken by the dispatcher.",
		}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marain",
			Name:      "handshakes_total",
			Help:      "Login handshakes by result.",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marain",
			Name:      "events_total",
			Help:      "Events consumed by the dispatcher, by kind.",
		}, []string{"kind"}),
	}

	m.Registry.MustRegister(
		m.framesSent,
		m.framesReceived,
		m.bytesSent,
		m.bytesReceived,
		m.frameErrors,
		m.queueDepth,
		m.eventsPending,
		m.handshakes,
		m.events,
	)
	return m
}

func (m *Metrics) RecordSent(n int) {
	m.framesSent.Inc()
	m.bytesSent.Add(float64(n))
}

func (m *Metrics) RecordReceived(n int) {
	m.framesReceived.Inc()
	m.bytesReceived.Add(float64(n))
}

func (m *Metrics) RecordFrameError() {
	m.frameErrors.Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) SetEventsPending(n int) {
	m.eventsPending.Set(float64(n))
}

// EventsPending returns the pending events gauge
func (m *Metrics) EventsPending() prometheus.Gauge {
	return m.eventsPending
}

func (m *Metrics) RecordHandshake(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.handshakes.WithLabelValues(result).Inc()
}

// RecordEvent counts one dispatched event of the given kind
func (m *Metrics) RecordEvent(kind string) {
	m.events.WithLabelValues(kind).Inc()
}

// EventsTotal returns the counter for one event kind
func (m *Metrics) EventsTotal(kind string) prometheus.Counter {
	return m.events.WithLabelValues(kind)
}

// HandshakesTotal returns the handshake counter for "ok" or "failed"
func (m *Metrics) HandshakesTotal(result string) prometheus.Counter {
	return m.handshakes.WithLabelValues(result)
}
