// Package cultural scores language and cultural compatibility between a
// crisis request and a responder profile.
package cultural

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/kilianp07/crisismatch/core/model"
	"github.com/kilianp07/crisismatch/core/profile"
)

const (
	languageWeight = 0.6
	cultureWeight  = 0.4

	competencyWeight = 0.6
	backgroundWeight = 0.4

	// preferredLanguageShare is the part of the language score driven by
	// preferred (non-required) languages.
	preferredLanguageShare = 0.2
)

// Special-needs competencies recognised in cultural considerations.
const (
	CompetencyLGBTQ          = "LGBTQ_AFFIRMING"
	CompetencyVeteran        = "VETERAN"
	CompetencyDisability     = "DISABILITY"
	CompetencyTraumaInformed = "TRAUMA_INFORMED"
)

var competencyAliases = map[string]string{
	"LGBTQ":            CompetencyLGBTQ,
	"LGBTQIA":          CompetencyLGBTQ,
	"LGBTQ_AFFIRMING":  CompetencyLGBTQ,
	"VETERAN":          CompetencyVeteran,
	"VETERANS":         CompetencyVeteran,
	"MILITARY":         CompetencyVeteran,
	"DISABILITY":       CompetencyDisability,
	"DISABILITY_AWARE": CompetencyDisability,
	"ACCESSIBILITY":    CompetencyDisability,
	"TRAUMA_INFORMED":  CompetencyTraumaInformed,
}

// Engine scores compatibility using profiles from a profile.Store.
type Engine struct {
	profiles profile.Store
}

// NewEngine returns an engine backed by profiles.
func NewEngine(profiles profile.Store) *Engine {
	return &Engine{profiles: profiles}
}

func (e *Engine) profile(ctx context.Context, id string) (model.ResponderProfile, error) {
	if err := ctx.Err(); err != nil {
		return model.ResponderProfile{}, err
	}
	p, err := e.profiles.Get(ctx, id)
	if err != nil {
		return model.ResponderProfile{}, fmt.Errorf("cultural lookup %s: %w", id, err)
	}
	return p, nil
}

// MatchLanguage compares a responder's languages with the requirements.
func (e *Engine) MatchLanguage(ctx context.Context, responderID string, reqs []model.LanguageRequirement) (model.LanguageMatch, error) {
	p, err := e.profile(ctx, responderID)
	if err != nil {
		return model.LanguageMatch{}, err
	}
	return MatchLanguage(p, reqs), nil
}

// MatchCulture returns the cultural compatibility score in [0,1].
func (e *Engine) MatchCulture(ctx context.Context, responderID string, considerations []string) (float64, error) {
	p, err := e.profile(ctx, responderID)
	if err != nil {
		return 0, err
	}
	return MatchCulture(p, considerations), nil
}

// ComprehensiveMatch composes language and cultural compatibility.
func (e *Engine) ComprehensiveMatch(ctx context.Context, responderID string, req model.MatchRequest) (model.CompatibilityMatch, error) {
	p, err := e.profile(ctx, responderID)
	if err != nil {
		return model.CompatibilityMatch{}, err
	}
	return Comprehensive(p, req), nil
}

// MatchLanguage scores p against reqs. A requirement is met only when the
// responder's proficiency is at least the requested minimum. Unmet
// requirements still earn partial credit proportional to the gap.
func MatchLanguage(p model.ResponderProfile, reqs []model.LanguageRequirement) model.LanguageMatch {
	if len(reqs) == 0 {
		return model.LanguageMatch{PrimaryLanguageMatch: true, LanguageScore: 1, ProficiencyMatch: true}
	}
	m := model.LanguageMatch{
		PrimaryLanguageMatch: strings.EqualFold(p.PrimaryLanguage(), reqs[0].Code),
		ProficiencyMatch:     true,
	}
	var total float64
	for _, r := range reqs {
		total += requirementScore(p, r)
		skill, ok := p.Language(r.Code)
		if !ok || !skill.Satisfies(r) {
			m.ProficiencyMatch = false
			m.Unmet = append(m.Unmet, r.Code)
		}
	}
	m.LanguageScore = clamp01(total / float64(len(reqs)))
	return m
}

func requirementScore(p model.ResponderProfile, r model.LanguageRequirement) float64 {
	skill, ok := p.Language(r.Code)
	if !ok || skill.Proficiency <= model.ProficiencyNone {
		return 0
	}
	floor := r.MinProficiency
	if floor <= model.ProficiencyNone {
		floor = model.ProficiencyBasic
	}
	if skill.Proficiency >= floor {
		headroom := float64(skill.Proficiency-floor) / 2
		return 0.8 + 0.2*math.Min(1, headroom)
	}
	return 0.4 * float64(skill.Proficiency) / float64(floor)
}

type consideration struct {
	competency string
	field      string
	value      string
}

// parseConsideration accepts special-needs names (e.g. "LGBTQ+",
// "trauma-informed") and background markers of the form "religion:islam".
func parseConsideration(raw string) (consideration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return consideration{}, false
	}
	if k, v, ok := strings.Cut(raw, ":"); ok {
		return consideration{field: strings.ToLower(strings.TrimSpace(k)), value: strings.TrimSpace(v)}, true
	}
	key := normalise(raw)
	if c, ok := competencyAliases[key]; ok {
		return consideration{competency: c}, true
	}
	return consideration{competency: key}, true
}

func normalise(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func backgroundMatches(p model.ResponderProfile, c consideration) bool {
	bg := p.Background
	switch c.field {
	case "country", "nationality":
		return strings.EqualFold(bg.Country, c.value) || strings.EqualFold(p.Location.Country, c.value)
	case "ethnicity":
		return strings.EqualFold(bg.Ethnicity, c.value)
	case "religion", "faith":
		return strings.EqualFold(bg.Religion, c.value)
	case "language":
		_, ok := p.Language(c.value)
		return ok
	default:
		for _, id := range bg.Identities {
			if strings.EqualFold(id, c.value) {
				return true
			}
		}
		return p.HasCompetency(c.value)
	}
}

func competencyMatches(p model.ResponderProfile, c consideration) bool {
	if p.HasCompetency(c.competency) {
		return true
	}
	for _, id := range p.Background.Identities {
		if normalise(id) == c.competency {
			return true
		}
	}
	return false
}

// MatchCulture scores p against the considerations: the share of
// special-needs competencies addressed and the share of background markers
// shared, blended 60/40 when both kinds are present. No considerations
// yields 1.
func MatchCulture(p model.ResponderProfile, considerations []string) float64 {
	var compTotal, compHit, bgTotal, bgHit int
	for _, raw := range considerations {
		c, ok := parseConsideration(raw)
		if !ok {
			continue
		}
		if c.competency != "" {
			compTotal++
			if competencyMatches(p, c) {
				compHit++
			}
			continue
		}
		bgTotal++
		if backgroundMatches(p, c) {
			bgHit++
		}
	}
	switch {
	case compTotal == 0 && bgTotal == 0:
		return 1
	case bgTotal == 0:
		return float64(compHit) / float64(compTotal)
	case compTotal == 0:
		return float64(bgHit) / float64(bgTotal)
	}
	return clamp01(competencyWeight*float64(compHit)/float64(compTotal) +
		backgroundWeight*float64(bgHit)/float64(bgTotal))
}

// Comprehensive composes language and cultural scores for a request.
func Comprehensive(p model.ResponderProfile, req model.MatchRequest) model.CompatibilityMatch {
	lm := MatchLanguage(p, req.RequiredLanguages)
	if len(req.PreferredLanguages) > 0 {
		pref := MatchLanguage(p, req.PreferredLanguages)
		lm.LanguageScore = clamp01((1-preferredLanguageShare)*lm.LanguageScore + preferredLanguageShare*pref.LanguageScore)
	}
	cm := MatchCulture(p, req.CulturalConsiderations)
	score := clamp01(languageWeight*lm.LanguageScore + cultureWeight*cm)
	return model.CompatibilityMatch{
		MatchScore:    score,
		Confidence:    model.ConfidenceFor(score),
		LanguageMatch: lm,
		CulturalMatch: cm,
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
