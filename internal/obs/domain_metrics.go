package obs

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// QuoteMetrics groups Prometheus collectors for pricing evaluations.
type QuoteMetrics struct {
	// Total counts quote evaluations by band and outcome.
	Total *prometheus.CounterVec
	// Discount observes the total discount granted per successful quote.
	Discount *prometheus.HistogramVec
	// Cache counts quote cache outcomes: hit, miss, error or bypass (breaker open).
	Cache *prometheus.CounterVec
}

// NewQuoteMetrics creates and registers quote collectors. Collectors already registered
// under the same name are reused.
func NewQuoteMetrics(namespace string, reg prometheus.Registerer) *QuoteMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &QuoteMetrics{
		Total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Count of quote evaluations by time band and result.",
		}, []string{"band", "result"}),
		Discount: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_discount_amount",
			Help:      "Total discount (bulk + time band + voucher) granted per quote.",
			Buckets:   []float64{0, 0.5, 1, 2, 5, 10, 20, 50},
		}, []string{"band"}),
		Cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_cache_total",
			Help:      "Quote cache outcomes by result.",
		}, []string{"result"}),
	}
	mustRegisterCollector(reg, m.Total, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			m.Total = v
		}
	})
	mustRegisterCollector(reg, m.Discount, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.HistogramVec); ok {
			m.Discount = v
		}
	})
	mustRegisterCollector(reg, m.Cache, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			m.Cache = v
		}
	})
	return m
}

// ObserveQuote records one evaluation outcome. A nil receiver is a no-op.
func (m *QuoteMetrics) ObserveQuote(band, result string, discount float64) {
	if m == nil {
		return
	}
	if band == "" {
		band = "unknown"
	}
	m.Total.WithLabelValues(band, result).Inc()
	if result == "ok" {
		m.Discount.WithLabelValues(band).Observe(discount)
	}
}

// ObserveCache records a cache lookup result. A nil receiver is a no-op.
func (m *QuoteMetrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.Cache.WithLabelValues(result).Inc()
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
