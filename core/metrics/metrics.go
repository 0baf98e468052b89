package metrics

import (
	"time"
)

// MatchRecord describes one FindMatch decision.
type MatchRecord struct {
	SessionID   string
	Urgency     string
	ResponderID string
	// Path is scored, emergency or fallback.
	Path     string
	Strategy string
	Score    float64
	Latency  time.Duration
	Time     time.Time
}

// MetricsSink records match decisions for observability purposes.
type MetricsSink interface {
	RecordMatch(rec MatchRecord) error
}

// AlertRecord captures an operational alert such as critical burnout.
type AlertRecord struct {
	Kind        string
	Severity    string
	ResponderID string
	Time        time.Time
}

// AlertRecorder records alerts.
type AlertRecorder interface {
	RecordAlert(rec AlertRecord) error
}

// BurnoutRecord is a burnout score observed by the workload monitor.
type BurnoutRecord struct {
	ResponderID string
	Level       string
	Score       float64
	Time        time.Time
}

// BurnoutRecorder records burnout observations.
type BurnoutRecorder interface {
	RecordBurnout(rec BurnoutRecord) error
}

// AvailabilityRecord is a responder status transition.
type AvailabilityRecord struct {
	ResponderID string
	Previous    string
	Current     string
	Reason      string
	Time        time.Time
}

// AvailabilityRecorder records status transitions.
type AvailabilityRecorder interface {
	RecordAvailability(rec AvailabilityRecord) error
}

// PoolSizeRecorder records how many responders are currently available.
type PoolSizeRecorder interface {
	RecordPoolSize(available int) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordMatch(MatchRecord) error               { return nil }
func (NopSink) RecordAlert(AlertRecord) error               { return nil }
func (NopSink) RecordBurnout(BurnoutRecord) error           { return nil }
func (NopSink) RecordAvailability(AvailabilityRecord) error { return nil }
func (NopSink) RecordPoolSize(int) error                    { return nil }
