package telnet

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts protocol activity across all connections. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	frames       *prometheus.CounterVec
	active       prometheus.Gauge
	negotiations prometheus.Counter
	malformed    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bbsgate",
			Subsystem: "telnet",
			Name:      "frames_total",
			Help:      "Telnet frames received, by command.",
		}, []string{"command"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bbsgate",
			Subsystem: "telnet",
			Name:      "connections_active",
			Help:      "Telnet connections currently open.",
		}),
		negotiations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bbsgate",
			Subsystem: "telnet",
			Name:      "negotiations_completed_total",
			Help:      "Connections that reported a terminal type and became ready.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bbsgate",
			Subsystem: "telnet",
			Name:      "malformed_frames_total",
			Help:      "Connections closed because a frame could not be parsed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.frames, m.active, m.negotiations, m.malformed)
	}
	return m
}

// Connected and Disconnected track the number of open connections.
func (m *Metrics) Connected() {
	if m != nil {
		m.active.Inc()
	}
}

func (m *Metrics) Disconnected() {
	if m != nil {
		m.active.Dec()
	}
}

func (m *Metrics) frame(cmd Command) {
	if m != nil {
		m.frames.WithLabelValues(cmd.String()).Inc()
	}
}

func (m *Metrics) negotiated() {
	if m != nil {
		m.negotiations.Inc()
	}
}

func (m *Metrics) malformedFrame() {
	if m != nil {
		m.malformed.Inc()
	}
}
