// Package metrics provides Prometheus collectors for the optimization client.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded for a submit.
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected" // validation failed, nothing sent
	OutcomeBusy     = "busy"     // a request was already pending
)

// Metrics groups every collector. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	OptimizerRequestDuration *prometheus.HistogramVec
	OptimizerRequestsTotal   *prometheus.CounterVec
	LayoutFetchesTotal       *prometheus.CounterVec
	SubmitsTotal             *prometheus.CounterVec
	RequestPieces            prometheus.Histogram
	BreakerState             prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		OptimizerRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "slabcut_optimizer_request_duration_seconds",
				Help:    "Duration of calls to the optimization service in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status_code"},
		),
		OptimizerRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slabcut_optimizer_requests_total",
				Help: "Total calls to the optimization service by status code",
			},
			[]string{"status_code"},
		),
		LayoutFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slabcut_layout_fetches_total",
				Help: "Total layout reference downloads by result",
			},
			[]string{"result"},
		),
		SubmitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slabcut_submits_total",
				Help: "Total optimize submits by outcome",
			},
			[]string{"outcome"},
		),
		RequestPieces: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "slabcut_request_pieces",
				Help:    "Piece instances per optimization request",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		BreakerState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "slabcut_circuit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
		),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordOptimizerCall records one outbound call. Status 0 means the call
// never got a response.
func (m *Metrics) RecordOptimizerCall(duration time.Duration, status int) {
	if m == nil {
		return
	}
	code := "none"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.OptimizerRequestDuration.WithLabelValues(code).Observe(duration.Seconds())
	m.OptimizerRequestsTotal.WithLabelValues(code).Inc()
}

// RecordLayoutFetch records one layout download.
func (m *Metrics) RecordLayoutFetch(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.LayoutFetchesTotal.WithLabelValues(result).Inc()
}

// RecordSubmit records how a submit ended.
func (m *Metrics) RecordSubmit(outcome string) {
	if m == nil {
		return
	}
	m.SubmitsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRequestSize records the number of piece instances sent.
func (m *Metrics) ObserveRequestSize(pieces int) {
	if m == nil {
		return
	}
	m.RequestPieces.Observe(float64(pieces))
}

// SetBreakerState stores the numeric breaker state.
func (m *Metrics) SetBreakerState(state int) {
	if m == nil {
		return
	}
	m.BreakerState.Set(float64(state))
}
