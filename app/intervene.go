package app

import (
	"context"
	"time"

	"github.com/kilianp07/crisismatch/core/availability"
	"github.com/kilianp07/crisismatch/core/events"
	"github.com/kilianp07/crisismatch/core/model"
	"github.com/kilianp07/crisismatch/internal/eventbus"
)

// AlertSupervisorReview is raised when a responder reaches High burnout risk.
const AlertSupervisorReview = "supervisor_review"

// statusSetter is the registry subset used for forced breaks.
type statusSetter interface {
	UpdateStatus(id string, status model.Status, md availability.Metadata) error
}

// intervener applies workload interventions through the registry and the
// alert channel.
type intervener struct {
	registry statusSetter
	bus      eventbus.EventBus
	now      func() time.Time
}

func (i intervener) ForceBreak(_ context.Context, responderID, reason string) error {
	return i.registry.UpdateStatus(responderID, model.StatusBreak, availability.Metadata{Reason: "forced break: " + reason})
}

func (i intervener) RequestSupervisorReview(_ context.Context, responderID, reason string) error {
	i.bus.Publish(events.AlertEvent{
		Kind:        AlertSupervisorReview,
		Severity:    events.SeverityWarning,
		ResponderID: responderID,
		Message:     reason,
		At:          i.now(),
	})
	return nil
}

// relayAvailability copies registry transitions onto the service bus so the
// metrics collector and the MQTT forwarder see them. The subscription is
// taken before returning.
func relayAvailability(ctx context.Context, reg *availability.Registry, bus eventbus.EventBus) <-chan struct{} {
	done := make(chan struct{})
	sub := reg.Events()
	go func() {
		defer close(done)
		defer reg.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				bus.Publish(ev)
			}
		}
	}()
	return done
}
