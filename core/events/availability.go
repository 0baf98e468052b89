package events

import (
	"time"

	"github.com/kilianp07/crisismatch/core/model"
)

// AvailabilityChanged is published by the availability registry on every
// status transition or session reservation/release.
type AvailabilityChanged struct {
	ResponderID string
	Previous    model.Status
	Current     model.Status
	Reason      string
	// SessionDelta is +1 on reserve, -1 on release and 0 otherwise.
	SessionDelta int
	At           time.Time
}
