package events

import (
	"time"

	"github.com/kilianp07/crisismatch/core/model"
)

// MatchEvent is emitted once per FindMatch call.
type MatchEvent struct {
	SessionID   string
	Urgency     model.Urgency
	ResponderID string
	Path        model.MatchPath
	Score       float64
	Strategy    model.FallbackStrategy
	Reason      string
	Latency     time.Duration
	At          time.Time
}
