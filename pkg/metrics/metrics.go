package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Requests          *prometheus.CounterVec
	LatencyMS         *prometheus.HistogramVec
	CartOperations    *prometheus.CounterVec
	Publishes         *prometheus.CounterVec
	BreakerState      *prometheus.GaugeVec
	Acknowledgements  *prometheus.CounterVec
	RecoverySweeps    *prometheus.CounterVec
	RecoveryRepublish *prometheus.CounterVec
}

// New registers every collector on reg under the given subsystem.
func New(service string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pos",
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		CartOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: service,
			Name:      "cart_operations_total",
			Help:      "Cart operations by event and outcome.",
		}, []string{"event", "result"}),
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: service,
			Name:      "tranlog_publish_total",
			Help:      "Transaction log publish attempts by outcome.",
		}, []string{"result"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pos",
			Subsystem: service,
			Name:      "circuit_breaker_open",
			Help:      "1 while the named circuit breaker is open.",
		}, []string{"name"}),
		Acknowledgements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: service,
			Name:      "delivery_acknowledgements_total",
			Help:      "Consumer acknowledgements by service and status.",
		}, []string{"service", "status"}),
		RecoverySweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: service,
			Name:      "recovery_sweeps_total",
			Help:      "Recovery sweep triggers by outcome.",
		}, []string{"outcome"}),
		RecoveryRepublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: service,
			Name:      "recovery_republish_total",
			Help:      "Messages republished by the recovery sweep by outcome.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.Requests,
		m.LatencyMS,
		m.CartOperations,
		m.Publishes,
		m.BreakerState,
		m.Acknowledgements,
		m.RecoverySweeps,
		m.RecoveryRepublish,
	)
	return m
}

// NewUnregistered builds collectors that are not exported anywhere.
func NewUnregistered(service string) *Metrics {
	return New(service, prometheus.NewRegistry())
}

// ObserveBreaker records a breaker transition.
func (m *Metrics) ObserveBreaker(name, _, to string) {
	v := 0.0
	if to == "open" {
		v = 1
	}
	m.BreakerState.WithLabelValues(name).Set(v)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
