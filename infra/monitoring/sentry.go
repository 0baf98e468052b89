package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/crisismatch/config"
	coremon "github.com/kilianp07/crisismatch/core/monitoring"
)

const serviceName = "crisismatch"

// NewSentryMonitor reports errors to Sentry. Without a DSN it returns a
// NopMonitor so local runs stay silent.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
		ServerName:       serviceName,
		SendDefaultPII:   false,
		BeforeSend: func(ev *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return scrub(ev)
		},
	})
	if err != nil {
		return nil, err
	}
	return &sentryMonitor{hub: sentry.CurrentHub()}, nil
}

// scrub drops caller and request details. Session and responder ids are
// kept as tags; everything else a client could attach stays out of Sentry.
func scrub(ev *sentry.Event) *sentry.Event {
	if ev == nil {
		return nil
	}
	ev.User = sentry.User{}
	ev.Request = nil
	for k := range ev.Extra {
		delete(ev.Extra, k)
	}
	return ev
}

type sentryMonitor struct {
	hub *sentry.Hub
}

func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("service", serviceName)
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		s.hub.CaptureException(err)
	})
}

// Recover reports a panic and re-raises it once the event is flushed.
func (s *sentryMonitor) Recover() {
	if r := recover(); r != nil {
		s.hub.Recover(r)
		s.hub.Flush(2 * time.Second)
		panic(r)
	}
}

func (s *sentryMonitor) Flush(timeout time.Duration) { s.hub.Flush(timeout) }
