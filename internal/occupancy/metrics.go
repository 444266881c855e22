package occupancy

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts occupancy operations by outcome. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	ops *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radops_occupancy_operations_total",
			Help: "Occupancy operations partitioned by operation and outcome.",
		}, []string{"operation", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.ops)
	}
	return m
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = string(KindOf(err))
	}
	m.ops.WithLabelValues(op, outcome).Inc()
}
