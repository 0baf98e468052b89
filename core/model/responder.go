package model

import "time"

// Status is the availability state reported by a responder.
type Status string

const (
	StatusOnline         Status = "ONLINE"
	StatusOffline        Status = "OFFLINE"
	StatusBusy           Status = "BUSY"
	StatusBreak          Status = "BREAK"
	StatusEmergencyOnly  Status = "EMERGENCY_ONLY"
	StatusTraining       Status = "TRAINING"
	StatusMeeting        Status = "MEETING"
	StatusTechnicalIssue Status = "TECHNICAL_ISSUE"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusBusy, StatusBreak, StatusEmergencyOnly,
		StatusTraining, StatusMeeting, StatusTechnicalIssue:
		return true
	}
	return false
}

// Location places a responder or a caller geographically.
type Location struct {
	Timezone string `json:"timezone,omitempty" yaml:"timezone"`
	Country  string `json:"country,omitempty" yaml:"country"`
}

// IsZero reports whether no location information is set.
func (l Location) IsZero() bool { return l.Timezone == "" && l.Country == "" }

// ResponderStatus is the live availability view of one responder.
// CurrentSessions never exceeds MaxConcurrentSessions.
type ResponderStatus struct {
	ID                    string    `json:"id"`
	Status                Status    `json:"status"`
	LastHeartbeat         time.Time `json:"last_heartbeat"`
	CurrentSessions       int       `json:"current_sessions"`
	MaxConcurrentSessions int       `json:"max_concurrent_sessions"`
	EmergencyAvailable    bool      `json:"emergency_available"`
	Location              Location  `json:"location"`
}

// HasCapacity returns true if another session can be assigned.
func (r ResponderStatus) HasCapacity() bool {
	return r.CurrentSessions < r.MaxConcurrentSessions
}

// Fresh returns true if the last heartbeat is within staleAfter of now.
func (r ResponderStatus) Fresh(now time.Time, staleAfter time.Duration) bool {
	if r.LastHeartbeat.IsZero() {
		return false
	}
	return now.Sub(r.LastHeartbeat) <= staleAfter
}

// Utilization returns the share of concurrent session slots in use.
func (r ResponderStatus) Utilization() float64 {
	if r.MaxConcurrentSessions <= 0 {
		return 1
	}
	return float64(r.CurrentSessions) / float64(r.MaxConcurrentSessions)
}
