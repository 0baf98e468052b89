package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/crisismatch/core/metrics"
)

// PromSink records match decisions, alerts and burnout scores in Prometheus metrics.
type PromSink struct {
	matches     *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	scores      *prometheus.HistogramVec
	alerts      *prometheus.CounterVec
	burnout     *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	pool        prometheus.Gauge
}

// NewPromSink registers match metrics on the default Prometheus registerer.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// register registers c, reusing an identical collector that is already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "match_decisions_total",
			Help: "Total number of match decisions by path",
		}, []string{"urgency", "path", "strategy"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "match_latency_seconds",
			Help:    "Time from request intake to match decision",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"urgency", "path"}),
		scores: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "match_score",
			Help:    "Composite score of the assigned responder",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"urgency"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alerts_total",
			Help: "Operational alerts raised",
		}, []string{"kind", "severity"}),
		burnout: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "responder_burnout_score",
			Help: "Latest burnout score per responder at high risk or above",
		}, []string{"responder_id", "level"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "responder_status_transitions_total",
			Help: "Responder availability transitions by resulting status",
		}, []string{"status"}),
		pool: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "responders_available",
			Help: "Responders currently available for new sessions",
		}),
	}
	var err error
	if s.matches, err = register(reg, s.matches); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, s.latency); err != nil {
		return nil, err
	}
	if s.scores, err = register(reg, s.scores); err != nil {
		return nil, err
	}
	if s.alerts, err = register(reg, s.alerts); err != nil {
		return nil, err
	}
	if s.burnout, err = register(reg, s.burnout); err != nil {
		return nil, err
	}
	if s.transitions, err = register(reg, s.transitions); err != nil {
		return nil, err
	}
	if s.pool, err = register(reg, s.pool); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordMatch counts the decision and observes its latency.
func (s *PromSink) RecordMatch(r coremetrics.MatchRecord) error {
	s.matches.WithLabelValues(r.Urgency, r.Path, r.Strategy).Inc()
	s.latency.WithLabelValues(r.Urgency, r.Path).Observe(r.Latency.Seconds())
	if r.ResponderID != "" {
		s.scores.WithLabelValues(r.Urgency).Observe(r.Score)
	}
	return nil
}

// RecordAlert counts the alert.
func (s *PromSink) RecordAlert(r coremetrics.AlertRecord) error {
	s.alerts.WithLabelValues(r.Kind, r.Severity).Inc()
	return nil
}

// RecordBurnout sets the burnout gauge for the responder.
func (s *PromSink) RecordBurnout(r coremetrics.BurnoutRecord) error {
	s.burnout.DeletePartialMatch(prometheus.Labels{"responder_id": r.ResponderID})
	s.burnout.WithLabelValues(r.ResponderID, r.Level).Set(r.Score)
	return nil
}

// RecordAvailability counts the status transition.
func (s *PromSink) RecordAvailability(r coremetrics.AvailabilityRecord) error {
	s.transitions.WithLabelValues(r.Current).Inc()
	return nil
}

// RecordPoolSize sets the available responder gauge.
func (s *PromSink) RecordPoolSize(n int) error {
	s.pool.Set(float64(n))
	return nil
}
