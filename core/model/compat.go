package model

// QualityComponents are the normalised quality signals of a responder.
type QualityComponents struct {
	Resolution   float64 `json:"resolution"`
	Satisfaction float64 `json:"satisfaction"`
	ResponseTime float64 `json:"response_time"`
	Reliability  float64 `json:"reliability"`
}

// QualityTrend compares recent sessions with older ones.
type QualityTrend struct {
	Direction string  `json:"direction"`
	Delta     float64 `json:"delta"`
}

// QualityScore is the rolling quality view of a responder.
type QualityScore struct {
	ResponderID string            `json:"responder_id"`
	Overall     float64           `json:"overall"`
	Components  QualityComponents `json:"components"`
	Trend       QualityTrend      `json:"trend"`
	Samples     int               `json:"samples"`
}

// LanguageMatch is the language side of a compatibility check.
type LanguageMatch struct {
	PrimaryLanguageMatch bool     `json:"primary_language_match"`
	LanguageScore        float64  `json:"language_score"`
	ProficiencyMatch     bool     `json:"proficiency_match"`
	Unmet                []string `json:"unmet,omitempty"`
}

// CompatibilityMatch combines language and cultural compatibility.
type CompatibilityMatch struct {
	MatchScore    float64       `json:"match_score"`
	Confidence    Confidence    `json:"confidence"`
	LanguageMatch LanguageMatch `json:"language_match"`
	CulturalMatch float64       `json:"cultural_match"`
}
