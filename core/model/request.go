package model

import (
	"fmt"
	"strings"
	"time"
)

// Urgency is the triage tier of a crisis request.
type Urgency string

const (
	UrgencyLow       Urgency = "LOW"
	UrgencyNormal    Urgency = "NORMAL"
	UrgencyHigh      Urgency = "HIGH"
	UrgencyCritical  Urgency = "CRITICAL"
	UrgencyEmergency Urgency = "EMERGENCY"
)

// Valid reports whether u is one of the known tiers.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyCritical, UrgencyEmergency:
		return true
	}
	return false
}

// Rank orders tiers from Low (0) to Emergency (4).
func (u Urgency) Rank() int {
	switch u {
	case UrgencyNormal:
		return 1
	case UrgencyHigh:
		return 2
	case UrgencyCritical:
		return 3
	case UrgencyEmergency:
		return 4
	default:
		return 0
	}
}

// Budget is the end-to-end response time allowed for the tier.
func (u Urgency) Budget() time.Duration {
	switch u {
	case UrgencyEmergency:
		return 30 * time.Second
	case UrgencyHigh, UrgencyCritical:
		return 5 * time.Second
	default:
		return 10 * time.Second
	}
}

// FallbackStrategy is applied when no viable match is found in time.
type FallbackStrategy string

const (
	FallbackBestAvailable FallbackStrategy = "BEST_AVAILABLE"
	FallbackEscalate      FallbackStrategy = "ESCALATE"
	FallbackTransfer      FallbackStrategy = "TRANSFER"
	FallbackResourcesOnly FallbackStrategy = "RESOURCES_ONLY"
)

// Valid reports whether f is one of the known strategies.
func (f FallbackStrategy) Valid() bool {
	switch f {
	case FallbackBestAvailable, FallbackEscalate, FallbackTransfer, FallbackResourcesOnly:
		return true
	}
	return false
}

// MatchRequest is submitted by the session layer for every crisis session.
type MatchRequest struct {
	SessionID              string                `json:"sessionId"`
	Urgency                Urgency               `json:"urgency"`
	Severity               int                   `json:"severity"`
	SessionType            string                `json:"sessionType,omitempty"`
	RequiredSpecialties    []Specialty           `json:"requiredSpecialties,omitempty"`
	PreferredSpecialties   []Specialty           `json:"preferredSpecialties,omitempty"`
	RequiredLanguages      []LanguageRequirement `json:"requiredLanguages,omitempty"`
	PreferredLanguages     []LanguageRequirement `json:"preferredLanguages,omitempty"`
	CulturalConsiderations []string              `json:"culturalConsiderations,omitempty"`
	ImmediateResponse      bool                  `json:"immediateResponse,omitempty"`
	MaxWaitSeconds         float64               `json:"maxWaitSeconds,omitempty"`
	// MaxWaitTime is the older name for MaxWaitSeconds, in seconds. It is
	// read only when MaxWaitSeconds is unset.
	MaxWaitTime            float64               `json:"maxWaitTime,omitempty"`
	FallbackStrategy       FallbackStrategy      `json:"fallbackStrategy,omitempty"`
	Location               Location              `json:"location,omitempty"`
}

// Validate rejects malformed requests before matching starts.
func (r MatchRequest) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidCriteria)
	}
	if !r.Urgency.Valid() {
		return fmt.Errorf("%w: unknown urgency %q", ErrInvalidCriteria, r.Urgency)
	}
	if r.Severity < 1 || r.Severity > 10 {
		return fmt.Errorf("%w: severity %d outside [1,10]", ErrInvalidCriteria, r.Severity)
	}
	if r.FallbackStrategy != "" && !r.FallbackStrategy.Valid() {
		return fmt.Errorf("%w: unknown fallback strategy %q", ErrInvalidCriteria, r.FallbackStrategy)
	}
	if r.MaxWaitSeconds < 0 || r.MaxWaitTime < 0 {
		return fmt.Errorf("%w: negative max wait time", ErrInvalidCriteria)
	}
	for _, l := range append(append([]LanguageRequirement(nil), r.RequiredLanguages...), r.PreferredLanguages...) {
		if strings.TrimSpace(l.Code) == "" {
			return fmt.Errorf("%w: language code is required", ErrInvalidCriteria)
		}
		if l.MinProficiency < ProficiencyBasic || l.MinProficiency > ProficiencyProfessional {
			return fmt.Errorf("%w: language %s has no minimum proficiency", ErrInvalidCriteria, l.Code)
		}
	}
	for _, s := range r.RequiredSpecialties {
		if strings.TrimSpace(string(s)) == "" {
			return fmt.Errorf("%w: empty required specialty", ErrInvalidCriteria)
		}
	}
	return nil
}

// Strategy returns the requested fallback strategy, defaulting to best available.
func (r MatchRequest) Strategy() FallbackStrategy {
	if r.FallbackStrategy == "" {
		return FallbackBestAvailable
	}
	return r.FallbackStrategy
}

// maxWait returns the caller's wait limit in seconds, zero when unset.
func (r MatchRequest) maxWait() float64 {
	if r.MaxWaitSeconds > 0 {
		return r.MaxWaitSeconds
	}
	return r.MaxWaitTime
}

// Deadline returns the effective wait budget: the tier budget, shortened by
// the caller's max wait when it asked for less.
func (r MatchRequest) Deadline() time.Duration {
	budget := r.Urgency.Budget()
	if mw := r.maxWait(); mw > 0 {
		if w := time.Duration(mw * float64(time.Second)); w < budget {
			return w
		}
	}
	return budget
}
