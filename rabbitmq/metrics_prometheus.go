package rabbitmq

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "rabbitwire"

// PrometheusMetricsCollector exports client metrics as Prometheus counters
type PrometheusMetricsCollector struct {
	connections *prometheus.CounterVec
	channels    *prometheus.CounterVec
	messages    *prometheus.CounterVec
	confirms    *prometheus.CounterVec
	frames      *prometheus.CounterVec
	heartbeats  prometheus.Counter
	timeouts    *prometheus.CounterVec
}

// NewPrometheusMetricsCollector creates the counters and registers them on
// reg. A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusMetricsCollector(reg prometheus.Registerer) (*PrometheusMetricsCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PrometheusMetricsCollector{
		connections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "connection",
				Name:      "events_total",
				Help:      "Connection lifecycle events.",
			},
			[]string{"event"},
		),
		channels: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "channel",
				Name:      "events_total",
				Help:      "Channel lifecycle events.",
			},
			[]string{"event"},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "message",
				Name:      "events_total",
				Help:      "Messages published, consumed, settled and returned.",
			},
			[]string{"event"},
		),
		confirms: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "confirm",
				Name:      "received_total",
				Help:      "Publisher confirms received from the broker.",
			},
			[]string{"ack"},
		),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "wire",
				Name:      "frames_total",
				Help:      "Frames written and read.",
			},
			[]string{"direction"},
		),
		heartbeats: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "wire",
				Name:      "heartbeats_missed_total",
				Help:      "Connections failed for missing peer heartbeats.",
			},
		),
		timeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "timeouts_total",
				Help:      "Operations that ran out of time.",
			},
			[]string{"op"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.connections, m.channels, m.messages, m.confirms, m.frames, m.heartbeats, m.timeouts,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PrometheusMetricsCollector) ConnectionCreated() {
	m.connections.WithLabelValues("created").Inc()
}

func (m *PrometheusMetricsCollector) ConnectionClosed() {
	m.connections.WithLabelValues("closed").Inc()
}

func (m *PrometheusMetricsCollector) ConnectionError(err error) {
	m.connections.WithLabelValues("error").Inc()
}

func (m *PrometheusMetricsCollector) ChannelCreated() {
	m.channels.WithLabelValues("created").Inc()
}

func (m *PrometheusMetricsCollector) ChannelClosed() {
	m.channels.WithLabelValues("closed").Inc()
}

func (m *PrometheusMetricsCollector) ChannelError(err error) {
	m.channels.WithLabelValues("error").Inc()
}

func (m *PrometheusMetricsCollector) MessagePublished() {
	m.messages.WithLabelValues("published").Inc()
}

func (m *PrometheusMetricsCollector) MessageConsumed() {
	m.messages.WithLabelValues("consumed").Inc()
}

func (m *PrometheusMetricsCollector) MessageAcked() {
	m.messages.WithLabelValues("acked").Inc()
}

func (m *PrometheusMetricsCollector) MessageNacked() {
	m.messages.WithLabelValues("nacked").Inc()
}

func (m *PrometheusMetricsCollector) MessageRejected() {
	m.messages.WithLabelValues("rejected").Inc()
}

func (m *PrometheusMetricsCollector) MessageReturned() {
	m.messages.WithLabelValues("returned").Inc()
}

func (m *PrometheusMetricsCollector) ConfirmReceived(ack bool) {
	m.confirms.WithLabelValues(strconv.FormatBool(ack)).Inc()
}

func (m *PrometheusMetricsCollector) FrameSent() {
	m.frames.WithLabelValues("sent").Inc()
}

func (m *PrometheusMetricsCollector) FrameReceived() {
	m.frames.WithLabelValues("received").Inc()
}

func (m *PrometheusMetricsCollector) HeartbeatMissed() {
	m.heartbeats.Inc()
}

func (m *PrometheusMetricsCollector) TimeoutOccurred(op string) {
	m.timeouts.WithLabelValues(op).Inc()
}
