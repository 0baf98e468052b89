package model

import (
	"strings"
	"time"
)

// Specialty is a crisis-support specialty such as SUICIDE_PREVENTION.
type Specialty string

const (
	SpecialtySuicidePrevention Specialty = "SUICIDE_PREVENTION"
	SpecialtySubstanceUse      Specialty = "SUBSTANCE_USE"
	SpecialtyDomesticViolence  Specialty = "DOMESTIC_VIOLENCE"
	SpecialtyGrief             Specialty = "GRIEF"
	SpecialtyYouth             Specialty = "YOUTH"
	SpecialtyTrauma            Specialty = "TRAUMA"
	SpecialtyEatingDisorders   Specialty = "EATING_DISORDERS"
)

// Role is the organisational role of a responder.
type Role string

const (
	RoleResponder  Role = "RESPONDER"
	RoleSpecialist Role = "SPECIALIST"
	RoleSupervisor Role = "SUPERVISOR"
)

// CulturalBackground describes identity markers a caller may ask to share.
type CulturalBackground struct {
	Country    string   `json:"country,omitempty" yaml:"country"`
	Ethnicity  string   `json:"ethnicity,omitempty" yaml:"ethnicity"`
	Religion   string   `json:"religion,omitempty" yaml:"religion"`
	Identities []string `json:"identities,omitempty" yaml:"identities"`
}

// WorkLimits overrides the default workload limits for a responder.
// Zero values mean "use the service default".
type WorkLimits struct {
	MaxDailyHours          float64 `json:"max_daily_hours,omitempty" yaml:"max_daily_hours"`
	MaxWeeklyHours         float64 `json:"max_weekly_hours,omitempty" yaml:"max_weekly_hours"`
	MaxConsecutiveSessions int     `json:"max_consecutive_sessions,omitempty" yaml:"max_consecutive_sessions"`
	MandatoryBreakMinutes  int     `json:"mandatory_break_minutes,omitempty" yaml:"mandatory_break_minutes"`
	MinRestHours           float64 `json:"min_rest_hours,omitempty" yaml:"min_rest_hours"`
}

// Shift is a scheduled working window.
type Shift struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Duration returns the shift length, zero for inverted windows.
func (s Shift) Duration() time.Duration {
	if !s.End.After(s.Start) {
		return 0
	}
	return s.End.Sub(s.Start)
}

// Overlap returns how long the shift overlaps [start, end).
func (s Shift) Overlap(start, end time.Time) time.Duration {
	from := s.Start
	if start.After(from) {
		from = start
	}
	to := s.End
	if end.Before(to) {
		to = end
	}
	if !to.After(from) {
		return 0
	}
	return to.Sub(from)
}

// ResponderProfile is the read-only profile served by the profile store.
type ResponderProfile struct {
	ID                    string             `json:"id" yaml:"id"`
	Name                  string             `json:"name" yaml:"name"`
	Role                  Role               `json:"role" yaml:"role"`
	Specialties           []Specialty        `json:"specialties" yaml:"specialties"`
	Certifications        []string           `json:"certifications,omitempty" yaml:"certifications"`
	Languages             []LanguageSkill    `json:"languages" yaml:"languages"`
	Background            CulturalBackground `json:"background" yaml:"background"`
	Competencies          []string           `json:"competencies,omitempty" yaml:"competencies"`
	YearsExperience       float64            `json:"years_experience" yaml:"years_experience"`
	TotalSessions         int                `json:"total_sessions" yaml:"total_sessions"`
	AverageRating         float64            `json:"average_rating" yaml:"average_rating"`
	MaxConcurrentSessions int                `json:"max_concurrent_sessions" yaml:"max_concurrent_sessions"`
	EmergencyAvailable    bool               `json:"emergency_available" yaml:"emergency_available"`
	Location              Location           `json:"location" yaml:"location"`
	Limits                WorkLimits         `json:"limits" yaml:"limits"`
	Shifts                []Shift            `json:"shifts,omitempty" yaml:"shifts"`
}

// HasSpecialty reports whether the responder holds the specialty.
func (p ResponderProfile) HasSpecialty(s Specialty) bool {
	for _, v := range p.Specialties {
		if strings.EqualFold(string(v), string(s)) {
			return true
		}
	}
	return false
}

// HasAllSpecialties reports whether every specialty in req is held.
func (p ResponderProfile) HasAllSpecialties(req []Specialty) bool {
	for _, s := range req {
		if !p.HasSpecialty(s) {
			return false
		}
	}
	return true
}

// Language returns the responder's skill for the language code.
func (p ResponderProfile) Language(code string) (LanguageSkill, bool) {
	for _, l := range p.Languages {
		if strings.EqualFold(l.Code, code) {
			return l, true
		}
	}
	return LanguageSkill{}, false
}

// PrimaryLanguage returns the primary language code, or the first listed.
func (p ResponderProfile) PrimaryLanguage() string {
	for _, l := range p.Languages {
		if l.Primary {
			return l.Code
		}
	}
	if len(p.Languages) > 0 {
		return p.Languages[0].Code
	}
	return ""
}

// SatisfiesLanguages reports whether every language requirement is met.
func (p ResponderProfile) SatisfiesLanguages(reqs []LanguageRequirement) bool {
	for _, r := range reqs {
		l, ok := p.Language(r.Code)
		if !ok || !l.Satisfies(r) {
			return false
		}
	}
	return true
}

// HasCompetency reports whether the responder holds a special-needs competency.
func (p ResponderProfile) HasCompetency(c string) bool {
	for _, v := range p.Competencies {
		if strings.EqualFold(v, c) {
			return true
		}
	}
	return false
}
