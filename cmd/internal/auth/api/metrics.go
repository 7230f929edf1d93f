package authapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts auth operations by outcome. One instance per process;
// registration happens against the given registerer.
type Metrics struct {
	ops *prometheus.CounterVec
}

// NewMetrics registers the auth counters. A nil registerer uses the
// default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		ops: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "keel",
			Subsystem: "auth",
			Name:      "operations_total",
			Help:      "Auth operations by endpoint and outcome.",
		}, []string{"op", "outcome"}),
	}
}

func (m *Metrics) observe(op, outcome string) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op, outcome).Inc()
}
