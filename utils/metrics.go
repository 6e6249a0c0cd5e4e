package utils

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Registry backs the /metrics endpoint.
	Registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	ledgerOps    *prometheus.CounterVec
	rolloverRows *prometheus.CounterVec
	rolloverRuns *prometheus.CounterVec
}

// NewMetrics registers every collector in a private registry so tests can
// build as many instances as they need.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_http_requests_total",
				Help: "HTTP requests by route and status.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crm_http_request_duration_seconds",
				Help:    "HTTP request latency by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ledgerOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_ledger_operations_total",
				Help: "Entity create/update operations by outcome kind.",
			},
			[]string{"entity", "operation", "result"},
		),
		rolloverRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_rollover_rows_total",
				Help: "Leads modified by the rollover job, per step.",
			},
			[]string{"step"},
		),
		rolloverRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_rollover_runs_total",
				Help: "Rollover job runs by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveLedger records the outcome of a ledger operation.
func (m *Metrics) ObserveLedger(entity, operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(KindOf(err))
	}
	m.ledgerOps.WithLabelValues(entity, operation, result).Inc()
}

// ObserveRollover records the rows touched by each step and the run outcome.
func (m *Metrics) ObserveRollover(outcome string, recycled, forwardFilled int64) {
	if m == nil {
		return
	}
	m.rolloverRows.WithLabelValues("recycle").Add(float64(recycled))
	m.rolloverRows.WithLabelValues("forward_fill").Add(float64(forwardFilled))
	m.rolloverRuns.WithLabelValues(outcome).Inc()
}
