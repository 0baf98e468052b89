package model

import (
	"fmt"
	"strings"
	"time"
)

// RiskLevel is the burnout risk tier.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

// String returns the wire name of the risk level.
func (l RiskLevel) String() string {
	switch l {
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	case RiskCritical:
		return "CRITICAL"
	default:
		return "LOW"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l RiskLevel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *RiskLevel) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "LOW":
		*l = RiskLow
	case "MEDIUM":
		*l = RiskMedium
	case "HIGH":
		*l = RiskHigh
	case "CRITICAL":
		*l = RiskCritical
	default:
		return fmt.Errorf("unknown risk level %q", string(b))
	}
	return nil
}

// RiskLevelFor maps a burnout score onto its tier.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score < 0.3:
		return RiskLow
	case score < 0.6:
		return RiskMedium
	case score < 0.8:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// BurnoutFactor is one capped contribution to the burnout score.
type BurnoutFactor struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// BurnoutRisk summarises a responder's exhaustion level.
type BurnoutRisk struct {
	Level   RiskLevel       `json:"level"`
	Score   float64         `json:"score"`
	Factors []BurnoutFactor `json:"factors,omitempty"`
}

// CurrentLoad is the observed workload of a responder.
type CurrentLoad struct {
	ActiveSessions      int     `json:"active_sessions"`
	HoursToday          float64 `json:"hours_today"`
	HoursThisWeek       float64 `json:"hours_this_week"`
	ConsecutiveSessions int     `json:"consecutive_sessions"`
	MinutesSinceBreak   float64 `json:"minutes_since_break"`
}

// CapacityLimits are the effective limits applied to a responder.
type CapacityLimits struct {
	MaxConcurrentSessions  int     `json:"max_concurrent_sessions"`
	MaxDailyHours          float64 `json:"max_daily_hours"`
	MaxWeeklyHours         float64 `json:"max_weekly_hours"`
	MaxConsecutiveSessions int     `json:"max_consecutive_sessions"`
	MandatoryBreakMinutes  int     `json:"mandatory_break_minutes"`
	MinRestHours           float64 `json:"min_rest_hours"`
}

// Utilization holds load/limit ratios.
type Utilization struct {
	Sessions    float64 `json:"sessions"`
	Daily       float64 `json:"daily"`
	Weekly      float64 `json:"weekly"`
	Consecutive float64 `json:"consecutive"`
}

// Max returns the highest of the ratios.
func (u Utilization) Max() float64 {
	m := u.Sessions
	for _, v := range []float64{u.Daily, u.Weekly, u.Consecutive} {
		if v > m {
			m = v
		}
	}
	return m
}

// WorkloadAssessment is a derived, read-only view of a responder's load.
type WorkloadAssessment struct {
	ResponderID     string         `json:"responder_id"`
	Current         CurrentLoad    `json:"current"`
	Limits          CapacityLimits `json:"limits"`
	Utilization     Utilization    `json:"utilization"`
	Burnout         BurnoutRisk    `json:"burnout"`
	Recommendations []string       `json:"recommendations,omitempty"`
	AssessedAt      time.Time      `json:"assessed_at"`
}

// WellnessCheck is a self-reported wellness survey.
type WellnessCheck struct {
	// BurnoutScore is the baseline burnout estimate in [0,1].
	BurnoutScore float64 `json:"burnout_score"`
	// StressLevel is self-reported stress on a 0-10 scale.
	StressLevel float64   `json:"stress_level"`
	At          time.Time `json:"at"`
}

// SessionOutcome is the recorded result of a completed session.
type SessionOutcome struct {
	SessionID   string `json:"session_id"`
	ResponderID string `json:"responder_id"`
	Resolved    bool   `json:"resolved"`
	// Satisfaction is the caller rating on a 1-5 scale, 0 when not rated.
	Satisfaction float64       `json:"satisfaction"`
	ResponseTime time.Duration `json:"response_time"`
	// Completed is false when the responder abandoned or missed the session.
	Completed bool      `json:"completed"`
	EndedAt   time.Time `json:"ended_at"`
}
