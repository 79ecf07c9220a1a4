package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSchedulingMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)

	m.ObserveClaim("success")
	m.ObserveClaim("slot_unavailable")
	m.ObserveClaim("slot_unavailable")
	m.ObserveTransition("completed", "success")
	m.ObserveFreeSlots(0.02)
	m.ObserveCountersReset(3)
	m.ObserveCountersReset(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.claimsTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.claimsTotal.WithLabelValues("slot_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("completed", "success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.countersReset))
}

func TestSchedulingMetricsNilSafe(t *testing.T) {
	var m *SchedulingMetrics
	m.ObserveClaim("success")
	m.ObserveTransition("cancelled", "invalid_transition")
	m.ObserveFreeSlots(0.1)
	m.ObserveCountersReset(1)
}
