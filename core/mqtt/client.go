// Package mqtt defines the messaging contract between the matcher and the
// responder consoles.
package mqtt

import (
	"strings"
	"time"
)

// Default topics.
const (
	// PresenceTopic is subscribed to; the wildcard is the responder id.
	PresenceTopic     = "crisis/responders/+/presence"
	AvailabilityTopic = "crisis/events/availability"
	AlertTopic        = "crisis/events/alerts"
)

// Publisher sends JSON encoded payloads to the broker.
type Publisher interface {
	Publish(topic string, v any) error
}

// Presence is the heartbeat published by a responder console. An empty
// Status only refreshes the heartbeat.
type Presence struct {
	ResponderID        string `json:"responder_id,omitempty"`
	Status             string `json:"status,omitempty"`
	MaxSessions        *int   `json:"max_sessions,omitempty"`
	EmergencyAvailable *bool  `json:"emergency_available,omitempty"`
	// TS is the console clock in unix seconds.
	TS int64 `json:"ts,omitempty"`
}

// SentAt returns the console timestamp, or zero when not provided.
func (p Presence) SentAt() time.Time {
	if p.TS <= 0 {
		return time.Time{}
	}
	return time.Unix(p.TS, 0)
}

// ResponderFromTopic extracts the responder id from a presence topic of the
// form crisis/responders/{id}/presence.
func ResponderFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}
