package wsstream

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the connection counters. A nil *metrics records nothing.
type metrics struct {
	framesSent     *prometheus.CounterVec
	framesReceived *prometheus.CounterVec
	messages       *prometheus.CounterVec
	protocolErrors prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}

	m := &metrics{
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wsstream",
			Name:      "frames_sent_total",
			Help:      "Frames written to the transport.",
		}, []string{"kind"}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wsstream",
			Name:      "frames_received_total",
			Help:      "Data frames read from the transport.",
		}, []string{"kind"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wsstream",
			Name:      "messages_total",
			Help:      "Complete messages sent and delivered.",
		}, []string{"direction"}),
		protocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsstream",
			Name:      "protocol_errors_total",
			Help:      "Inbound framing and reassembly errors.",
		}),
	}

	m.framesSent = register(reg, m.framesSent)
	m.framesReceived = register(reg, m.framesReceived)
	m.messages = register(reg, m.messages)
	m.protocolErrors = register(reg, m.protocolErrors)
	return m
}

// register registers c, or returns the collector already registered under
// the same descriptor.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *metrics) frameSent(kind string) {
	if m != nil {
		m.framesSent.WithLabelValues(kind).Inc()
	}
}

func (m *metrics) frameReceived(kind FrameKind) {
	if m != nil {
		m.framesReceived.WithLabelValues(kind.String()).Inc()
	}
}

func (m *metrics) message(direction string) {
	if m != nil {
		m.messages.WithLabelValues(direction).Inc()
	}
}

func (m *metrics) protocolError() {
	if m != nil {
		m.protocolErrors.Inc()
	}
}
