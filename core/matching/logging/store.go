// Package logging persists match decisions for audit and later review.
package logging

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/crisismatch/core/model"
)

// DecisionRecord captures one match decision and how it was reached.
type DecisionRecord struct {
	Timestamp   time.Time              `json:"timestamp"`
	MatchID     string                 `json:"match_id,omitempty"`
	SessionID   string                 `json:"session_id"`
	Urgency     model.Urgency          `json:"urgency"`
	Severity    int                    `json:"severity"`
	Path        model.MatchPath        `json:"path"`
	ResponderID string                 `json:"responder_id,omitempty"`
	Score       float64                `json:"score"`
	Confidence  model.Confidence       `json:"confidence,omitempty"`
	Strategy    model.FallbackStrategy `json:"strategy,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
	Candidates  []string               `json:"candidates,omitempty"`
	Excluded    map[string]string      `json:"excluded,omitempty"`
	Breakdown   *model.ScoreBreakdown  `json:"breakdown,omitempty"`
	LatencyMs   int64                  `json:"latency_ms"`
}

// Query defines filters for retrieving records.
type Query struct {
	Start       time.Time
	End         time.Time
	ResponderID string
	SessionID   string
	Urgency     model.Urgency
	Path        model.MatchPath
	// Limit keeps only the most recent records when positive.
	Limit int
}

func (q Query) matches(r DecisionRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Urgency != "" && r.Urgency != q.Urgency {
		return false
	}
	if q.Path != "" && r.Path != q.Path {
		return false
	}
	if q.SessionID != "" && r.SessionID != q.SessionID {
		return false
	}
	if q.ResponderID != "" && r.ResponderID != q.ResponderID {
		for _, id := range r.Candidates {
			if id == q.ResponderID {
				return true
			}
		}
		return false
	}
	return true
}

func (q Query) trim(res []DecisionRecord) []DecisionRecord {
	if q.Limit > 0 && len(res) > q.Limit {
		return res[len(res)-q.Limit:]
	}
	return res
}

// Store persists DecisionRecords and supports querying.
type Store interface {
	Append(ctx context.Context, rec DecisionRecord) error
	Query(ctx context.Context, q Query) ([]DecisionRecord, error)
	Close() error
}

// Config selects the decision log backend.
type Config struct {
	// Backend is one of jsonl, rotating, sqlite or empty for none.
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Open returns the configured store, or nil when logging is disabled.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "jsonl":
		return NewJSONLStore(cfg.Path)
	case "rotating":
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown decision log backend %q", cfg.Backend)
	}
}
