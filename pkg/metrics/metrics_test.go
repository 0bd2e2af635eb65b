package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveBreaker(t *testing.T) {
	m := NewUnregistered("test")

	m.ObserveBreaker("tranlog", "closed", "open")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("tranlog")))

	m.ObserveBreaker("tranlog", "open", "half-open")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("tranlog")))
}

func TestNew_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("cart", reg)
	m.Publishes.WithLabelValues("success").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "pos_cart_tranlog_publish_total")

	assert.Panics(t, func() { New("cart", reg) })
}
