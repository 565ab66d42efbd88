// Package metrics exposes the Prometheus instrumentation for the schedule
// engine. Collectors are registered on the default registry via promauto and
// served from the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProjectionsComputed counts completed cash-flow projections.
var ProjectionsComputed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "fluxo_projections_total",
	Help: "Completed cash-flow projections.",
})

// ProjectionDuration tracks how long a full projection takes.
var ProjectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "fluxo_projection_duration_seconds",
	Help:    "Wall time of a full owner projection.",
	Buckets: prometheus.DefBuckets,
})

// LedgerWrites counts ledger mutations by action (pay, unpay).
var LedgerWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fluxo_ledger_writes_total",
	Help: "Ledger entry mutations by action.",
}, []string{"action"})

// LedgerInsertConflicts counts first-pay races recovered as updates.
var LedgerInsertConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "fluxo_ledger_insert_conflicts_total",
	Help: "Duplicate ledger inserts recovered as updates.",
})

// LedgerEventsExported counts rows exported by the bookkeeping worker.
var LedgerEventsExported = promauto.NewCounter(prometheus.CounterOpts{
	Name: "fluxo_ledger_events_exported_total",
	Help: "Ledger events exported to the bookkeeping spreadsheet.",
})

// HTTPRequests counts API requests by route pattern and status class.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fluxo_http_requests_total",
	Help: "API requests by route pattern and status class.",
}, []string{"route", "status"})

// NewProjectionTimer starts a timer that observes into ProjectionDuration.
func NewProjectionTimer() *prometheus.Timer {
	return prometheus.NewTimer(ProjectionDuration)
}
