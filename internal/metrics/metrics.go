package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	RequestsIssued      prometheus.Counter
	HandshakesSucceeded prometheus.Counter
	HandshakesFailed    *prometheus.CounterVec
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		RequestsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "identity_gateway_requests_issued_total",
			Help: "Total number of verification requests issued",
		}),
		HandshakesSucceeded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "identity_gateway_handshakes_succeeded_total",
			Help: "Total number of verification handshakes completed successfully",
		}),
		HandshakesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_gateway_handshakes_failed_total",
			Help: "Total number of verification handshakes that failed, by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) IncRequestsIssued() {
	m.RequestsIssued.Inc()
}

func (m *Metrics) IncHandshakesSucceeded() {
	m.HandshakesSucceeded.Inc()
}

func (m *Metrics) IncHandshakesFailed(reason string) {
	m.HandshakesFailed.WithLabelValues(reason).Inc()
}
