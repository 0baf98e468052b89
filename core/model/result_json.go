package model

import "encoding/json"

// MarshalJSON includes the alternatives annex.
func (m *MatchResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(matchResultJSON{
		MatchID:        m.MatchID,
		SessionID:      m.SessionID,
		ResponderID:    m.ResponderID,
		MatchScore:     m.MatchScore,
		Confidence:     m.Confidence,
		Breakdown:      m.Breakdown,
		ResponseTimeMs: m.ResponseTimeMs,
		Path:           m.Path,
		CreatedAt:      m.CreatedAt,
		Alternatives:   m.Alternatives(),
	})
}

// UnmarshalJSON restores a result, annex included.
func (m *MatchResult) UnmarshalJSON(b []byte) error {
	var w matchResultJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	m.MatchID = w.MatchID
	m.SessionID = w.SessionID
	m.ResponderID = w.ResponderID
	m.MatchScore = w.MatchScore
	m.Confidence = w.Confidence
	m.Breakdown = w.Breakdown
	m.ResponseTimeMs = w.ResponseTimeMs
	m.Path = w.Path
	m.CreatedAt = w.CreatedAt
	m.mu.Lock()
	m.alternatives = w.Alternatives
	m.mu.Unlock()
	return nil
}
