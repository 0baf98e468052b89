// Package events defines the matching related events emitted on the event bus.
//
// Available event types:
//   - AvailabilityChanged: responder status or session count change
//   - MatchEvent: match or fallback decision for a session
//   - AlertEvent: operational alert raised by the workload monitor or a fallback
//   - BurnoutEvent: burnout assessment crossing the high threshold
package events
