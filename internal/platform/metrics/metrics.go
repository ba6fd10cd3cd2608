// Package metrics holds the Prometheus instruments for the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every instrument so constructors can take one handle.
type Metrics struct {
	CheckinsTotal   prometheus.Counter
	RosterRefreshes prometheus.Counter
	SearchDuration  prometheus.Histogram
	ExportDuration  prometheus.Histogram
	HTTPDuration    *prometheus.HistogramVec
}

// New registers all instruments on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers on a caller-supplied registry; tests pass a fresh one to
// avoid duplicate-registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CheckinsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_checkins_total",
			Help: "Total check-ins recorded against the attendance ledger",
		}),
		RosterRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_roster_refreshes_total",
			Help: "Total roster cache refreshes from the remote store",
		}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_search_duration_seconds",
			Help:    "Latency of roster ranking queries",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		ExportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_export_duration_seconds",
			Help:    "Latency of presence matrix export, snapshot included",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10},
		}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rollcall_http_request_duration_seconds",
			Help:    "Latency of HTTP requests by route",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"route", "status"}),
	}
}
