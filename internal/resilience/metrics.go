package resilience

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups breaker collectors. A nil *Metrics records nothing.
type Metrics struct {
	State       *prometheus.GaugeVec
	Transitions *prometheus.CounterVec
	Rejected    *prometheus.CounterVec
}

// NewMetrics creates and registers breaker collectors, reusing any already registered.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Current breaker state: 0=closed,1=open,2=half-open",
		}, []string{"target"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transition_total",
			Help:      "Count of breaker state transitions",
		}, []string{"target", "from", "to"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_rejected_total",
			Help:      "Calls short-circuited while the breaker was open",
		}, []string{"target"}),
	}
	if err := reg.Register(m.State); err != nil {
		m.State = existing(err).(*prometheus.GaugeVec)
	}
	if err := reg.Register(m.Transitions); err != nil {
		m.Transitions = existing(err).(*prometheus.CounterVec)
	}
	if err := reg.Register(m.Rejected); err != nil {
		m.Rejected = existing(err).(*prometheus.CounterVec)
	}
	return m
}

func existing(err error) prometheus.Collector {
	if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
		return are.ExistingCollector
	}
	panic(fmt.Errorf("register breaker metric: %w", err))
}

func (m *Metrics) setState(target string, s State) {
	if m == nil {
		return
	}
	var v float64
	switch s {
	case Open:
		v = 1
	case HalfOpen:
		v = 2
	}
	m.State.WithLabelValues(target).Set(v)
}

func (m *Metrics) transition(target string, from, to State) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(target, from.String(), to.String()).Inc()
}

func (m *Metrics) rejected(target string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(target).Inc()
}
