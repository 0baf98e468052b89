package mqtt

import (
	"context"
	"time"

	"github.com/kilianp07/crisismatch/core/events"
	"github.com/kilianp07/crisismatch/core/logger"
	coremqtt "github.com/kilianp07/crisismatch/core/mqtt"
	"github.com/kilianp07/crisismatch/internal/eventbus"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

type availabilityMessage struct {
	ResponderID string    `json:"responder_id"`
	Previous    string    `json:"previous"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	Delta       int       `json:"session_delta,omitempty"`
	At          time.Time `json:"at"`
}

type alertMessage struct {
	Kind        string    `json:"kind"`
	Severity    string    `json:"severity"`
	ResponderID string    `json:"responder_id,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	Message     string    `json:"message"`
	At          time.Time `json:"at"`
}

// EventForwarder republishes availability changes and alerts from the bus.
type EventForwarder struct {
	pub               Publisher
	availabilityTopic string
	alertTopic        string
	log               logger.Logger
}

// NewEventForwarder creates a forwarder using the topics from cfg.
func NewEventForwarder(pub Publisher, cfg Config, log logger.Logger) *EventForwarder {
	cfg.SetDefaults()
	return &EventForwarder{pub: pub, availabilityTopic: cfg.AvailabilityTopic, alertTopic: cfg.AlertTopic, log: log}
}

// Start subscribes to the bus and forwards events in the background until
// ctx is done or the bus is closed. The returned channel is closed on exit.
func (f *EventForwarder) Start(ctx context.Context, bus eventbus.EventBus) <-chan struct{} {
	done := make(chan struct{})
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := f.forward(ev); err != nil {
					f.log.Errorf("forward event: %v", err)
				}
			}
		}
	}()
	return done
}

func (f *EventForwarder) forward(ev eventbus.Event) error {
	switch e := ev.(type) {
	case events.AvailabilityChanged:
		return f.pub.Publish(f.availabilityTopic, availabilityMessage{
			ResponderID: e.ResponderID,
			Previous:    string(e.Previous),
			Status:      string(e.Current),
			Reason:      e.Reason,
			Delta:       e.SessionDelta,
			At:          e.At,
		})
	case events.AlertEvent:
		return f.pub.Publish(f.alertTopic, alertMessage{
			Kind:        e.Kind,
			Severity:    string(e.Severity),
			ResponderID: e.ResponderID,
			SessionID:   e.SessionID,
			Message:     e.Message,
			At:          e.At,
		})
	}
	return nil
}
