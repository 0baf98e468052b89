package matching

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	matchLatency      *prometheus.HistogramVec
	candidatesScored  *prometheus.HistogramVec
	reserveConflicts  prometheus.Counter
	componentTimeouts *prometheus.CounterVec
	fallbacksApplied  *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.HistogramVec, prometheus.Counter, *prometheus.CounterVec, *prometheus.CounterVec) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "match_engine_duration_seconds",
			Help:    "Time spent in FindMatch per urgency tier",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"urgency"},
	)
	cands := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "match_engine_candidates",
			Help:    "Candidates surviving the hard filters",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"urgency"},
	)
	conflicts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "match_engine_reserve_conflicts_total",
			Help: "Reservations lost to a concurrent match",
		},
	)
	timeouts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_engine_component_timeouts_total",
			Help: "Scoring components that degraded to neutral values",
		},
		[]string{"component"},
	)
	fallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_engine_fallbacks_total",
			Help: "Fallback strategies applied",
		},
		[]string{"strategy"},
	)
	return lat, cands, conflicts, timeouts, fallbacks
}

func init() {
	matchLatency, candidatesScored, reserveConflicts, componentTimeouts, fallbacksApplied = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers engine metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(matchLatency, candidatesScored, reserveConflicts, componentTimeouts, fallbacksApplied)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	matchLatency, candidatesScored, reserveConflicts, componentTimeouts, fallbacksApplied = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
