package model

import (
	"sync"
	"time"
)

// Confidence is the qualitative tier derived from a match score.
type Confidence string

const (
	ConfidenceExcellent Confidence = "EXCELLENT"
	ConfidenceHigh      Confidence = "HIGH"
	ConfidenceGood      Confidence = "GOOD"
	ConfidenceFair      Confidence = "FAIR"
	ConfidencePoor      Confidence = "POOR"
	ConfidenceCritical  Confidence = "CRITICAL"
)

// ConfidenceFor maps a score onto its confidence tier.
func ConfidenceFor(score float64) Confidence {
	switch {
	case score >= 0.9:
		return ConfidenceExcellent
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.7:
		return ConfidenceGood
	case score >= 0.6:
		return ConfidenceFair
	case score >= 0.4:
		return ConfidencePoor
	default:
		return ConfidenceCritical
	}
}

// MatchPath tells which branch of the engine produced a match.
type MatchPath string

const (
	PathScored    MatchPath = "scored"
	PathEmergency MatchPath = "emergency"
	PathFallback  MatchPath = "fallback"
)

// Adjustment is a bonus or penalty applied on top of the weighted sum.
type Adjustment struct {
	Factor string  `json:"factor"`
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason"`
}

// ScoreBreakdown explains how a match score was built.
type ScoreBreakdown struct {
	Components  map[string]float64 `json:"components"`
	Weights     map[string]float64 `json:"weights"`
	Adjustments []Adjustment       `json:"adjustments,omitempty"`
}

// Alternative is a runner-up candidate kept for explainability and handoff.
type Alternative struct {
	ResponderID string  `json:"responderId"`
	Score       float64 `json:"score"`
}

// MatchResult is created once per successful match. Only the alternatives
// annex may change after creation.
type MatchResult struct {
	MatchID        string         `json:"matchId"`
	SessionID      string         `json:"sessionId"`
	ResponderID    string         `json:"responderId"`
	MatchScore     float64        `json:"matchScore"`
	Confidence     Confidence     `json:"confidence"`
	Breakdown      ScoreBreakdown `json:"scoreBreakdown"`
	ResponseTimeMs int64          `json:"responseTimeMs"`
	Path           MatchPath      `json:"path"`
	CreatedAt      time.Time      `json:"createdAt"`

	mu           sync.Mutex
	alternatives []Alternative
}

// AddAlternative appends a runner-up to the annex.
func (m *MatchResult) AddAlternative(a Alternative) {
	m.mu.Lock()
	m.alternatives = append(m.alternatives, a)
	m.mu.Unlock()
}

// Alternatives returns a copy of the annex.
func (m *MatchResult) Alternatives() []Alternative {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Alternative(nil), m.alternatives...)
}

// matchResultJSON is the wire form, including the annex.
type matchResultJSON struct {
	MatchID        string         `json:"matchId"`
	SessionID      string         `json:"sessionId"`
	ResponderID    string         `json:"responderId"`
	MatchScore     float64        `json:"matchScore"`
	Confidence     Confidence     `json:"confidence"`
	Breakdown      ScoreBreakdown `json:"scoreBreakdown"`
	ResponseTimeMs int64          `json:"responseTimeMs"`
	Path           MatchPath      `json:"path"`
	CreatedAt      time.Time      `json:"createdAt"`
	Alternatives   []Alternative  `json:"alternatives"`
}

// FallbackDecision is returned when no viable match was made in time. A
// best-effort match may still be attached.
type FallbackDecision struct {
	Strategy    FallbackStrategy `json:"strategy"`
	Reason      string           `json:"reason"`
	Match       *MatchResult     `json:"match,omitempty"`
	EscalatedTo string           `json:"escalatedTo,omitempty"`
	Partner     string           `json:"partner,omitempty"`
	Resources   []string         `json:"resources,omitempty"`
	DecidedAt   time.Time        `json:"decidedAt"`
}

// Outcome is the result of FindMatch: either a match or a fallback decision.
type Outcome struct {
	Result   *MatchResult      `json:"result,omitempty"`
	Fallback *FallbackDecision `json:"fallback,omitempty"`
}

// Matched returns the match carried by the outcome, if any.
func (o Outcome) Matched() (*MatchResult, bool) {
	if o.Result != nil {
		return o.Result, true
	}
	if o.Fallback != nil && o.Fallback.Match != nil {
		return o.Fallback.Match, true
	}
	return nil, false
}

// ResponderID returns the assigned responder or "".
func (o Outcome) ResponderID() string {
	if m, ok := o.Matched(); ok {
		return m.ResponderID
	}
	return ""
}

// Kind describes the outcome for logs and metrics.
func (o Outcome) Kind() string {
	switch {
	case o.Result != nil:
		return string(o.Result.Path)
	case o.Fallback != nil:
		return "fallback_" + string(o.Fallback.Strategy)
	default:
		return "none"
	}
}
