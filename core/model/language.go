package model

import (
	"fmt"
	"strings"
)

// Proficiency is an ordered language skill level.
type Proficiency int

const (
	ProficiencyNone Proficiency = iota
	ProficiencyBasic
	ProficiencyConversational
	ProficiencyFluent
	ProficiencyNative
	ProficiencyProfessional
)

// String returns the wire name of the proficiency level.
func (p Proficiency) String() string {
	switch p {
	case ProficiencyBasic:
		return "BASIC"
	case ProficiencyConversational:
		return "CONVERSATIONAL"
	case ProficiencyFluent:
		return "FLUENT"
	case ProficiencyNative:
		return "NATIVE"
	case ProficiencyProfessional:
		return "PROFESSIONAL"
	default:
		return "NONE"
	}
}

// ParseProficiency converts a wire name into a Proficiency.
func ParseProficiency(s string) (Proficiency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BASIC":
		return ProficiencyBasic, nil
	case "CONVERSATIONAL":
		return ProficiencyConversational, nil
	case "FLUENT":
		return ProficiencyFluent, nil
	case "NATIVE":
		return ProficiencyNative, nil
	case "PROFESSIONAL":
		return ProficiencyProfessional, nil
	case "NONE", "":
		return ProficiencyNone, nil
	}
	return ProficiencyNone, fmt.Errorf("unknown proficiency %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Proficiency) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Proficiency) UnmarshalText(b []byte) error {
	v, err := ParseProficiency(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// LanguageRequirement is a language a caller needs, with a minimum level.
type LanguageRequirement struct {
	Code           string      `json:"code"`
	MinProficiency Proficiency `json:"min"`
}

// LanguageSkill is a language spoken by a responder.
type LanguageSkill struct {
	Code        string      `json:"code" yaml:"code"`
	Proficiency Proficiency `json:"proficiency" yaml:"proficiency"`
	Primary     bool        `json:"primary,omitempty" yaml:"primary"`
}

// Satisfies reports whether the skill meets the requirement.
func (l LanguageSkill) Satisfies(req LanguageRequirement) bool {
	return strings.EqualFold(l.Code, req.Code) && l.Proficiency >= req.MinProficiency
}
