package events

import "time"

// Severity grades an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertEvent is raised for conditions needing human attention.
type AlertEvent struct {
	Kind        string
	Severity    Severity
	ResponderID string
	SessionID   string
	Message     string
	At          time.Time
}

// BurnoutEvent is emitted when an assessment reaches High or Critical risk.
type BurnoutEvent struct {
	ResponderID string
	Level       string
	Score       float64
	At          time.Time
}
