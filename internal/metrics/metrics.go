package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for slot queries and claims.
type SchedulingMetrics struct {
	claimsTotal      *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	freeSlotsLatency prometheus.Histogram
	countersReset    prometheus.Counter
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		claimsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boilerparts",
			Subsystem: "scheduling",
			Name:      "slot_claims_total",
			Help:      "Slot claim attempts by outcome",
		}, []string{"result"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boilerparts",
			Subsystem: "scheduling",
			Name:      "booking_transitions_total",
			Help:      "Booking status transitions by target status and outcome",
		}, []string{"to", "result"}),
		freeSlotsLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "boilerparts",
			Subsystem: "scheduling",
			Name:      "free_slots_seconds",
			Help:      "Latency of free slot queries",
			Buckets:   prometheus.DefBuckets,
		}),
		countersReset: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "boilerparts",
			Subsystem: "scheduling",
			Name:      "daily_counters_reset_total",
			Help:      "Provider daily order counters reset by the worker",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.claimsTotal, m.transitionsTotal, m.freeSlotsLatency, m.countersReset)
	return m
}

func (m *SchedulingMetrics) ObserveClaim(result string) {
	if m == nil {
		return
	}
	m.claimsTotal.WithLabelValues(result).Inc()
}

func (m *SchedulingMetrics) ObserveTransition(to, result string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to, result).Inc()
}

func (m *SchedulingMetrics) ObserveFreeSlots(seconds float64) {
	if m == nil {
		return
	}
	m.freeSlotsLatency.Observe(seconds)
}

func (m *SchedulingMetrics) ObserveCountersReset(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.countersReset.Add(float64(n))
}
