package metrics

import (
	"context"

	"github.com/kilianp07/crisismatch/core/events"
	coremetrics "github.com/kilianp07/crisismatch/core/metrics"
	"github.com/kilianp07/crisismatch/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// alerts, burnout observations and availability transitions. Match decisions
// are recorded by the engine itself. It stops when the context is canceled or
// the bus is closed.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				record(sink, ev)
			}
		}
	}()
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) {
	switch e := ev.(type) {
	case events.AlertEvent:
		if r, ok := sink.(coremetrics.AlertRecorder); ok {
			_ = r.RecordAlert(coremetrics.AlertRecord{
				Kind:        e.Kind,
				Severity:    string(e.Severity),
				ResponderID: e.ResponderID,
				Time:        e.At,
			})
		}
	case events.BurnoutEvent:
		if r, ok := sink.(coremetrics.BurnoutRecorder); ok {
			_ = r.RecordBurnout(coremetrics.BurnoutRecord{
				ResponderID: e.ResponderID,
				Level:       e.Level,
				Score:       e.Score,
				Time:        e.At,
			})
		}
	case events.AvailabilityChanged:
		if r, ok := sink.(coremetrics.AvailabilityRecorder); ok {
			_ = r.RecordAvailability(coremetrics.AvailabilityRecord{
				ResponderID: e.ResponderID,
				Previous:    string(e.Previous),
				Current:     string(e.Current),
				Reason:      e.Reason,
				Time:        e.At,
			})
		}
	}
}
