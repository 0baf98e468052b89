package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/crisismatch/core/events"
	"github.com/kilianp07/crisismatch/core/logger"
	"github.com/kilianp07/crisismatch/internal/eventbus"
)

// Config configures SMS alerting.
type Config struct {
	Enabled    bool     `json:"enabled"`
	AccountSID string   `json:"account_sid"`
	AuthToken  string   `json:"auth_token"`
	From       string   `json:"from"`
	Recipients []string `json:"recipients"`
	// MinSeverity is the lowest severity texted; critical by default.
	MinSeverity string `json:"min_severity"`
	// CooldownSeconds suppresses repeats of the same alert kind and responder.
	CooldownSeconds int `json:"cooldown_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.MinSeverity == "" {
		c.MinSeverity = string(events.SeverityCritical)
	}
	if c.CooldownSeconds == 0 {
		c.CooldownSeconds = 600
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Recipients) == 0 {
		return fmt.Errorf("alerts: at least one recipient is required")
	}
	if rank(events.Severity(c.MinSeverity)) < 0 {
		return fmt.Errorf("alerts: unknown min_severity %q", c.MinSeverity)
	}
	return nil
}

func rank(s events.Severity) int {
	switch s {
	case events.SeverityInfo:
		return 0
	case events.SeverityWarning:
		return 1
	case events.SeverityCritical:
		return 2
	default:
		return -1
	}
}

// Notifier texts alerts from the event bus to the configured recipients.
type Notifier struct {
	sender     Sender
	recipients []string
	min        int
	cooldown   time.Duration
	log        logger.Logger
	now        func() time.Time

	mu   sync.Mutex
	sent map[string]time.Time
}

// NewNotifier creates a notifier.
func NewNotifier(cfg Config, sender Sender, log logger.Logger) *Notifier {
	cfg.SetDefaults()
	return &Notifier{
		sender:     sender,
		recipients: append([]string(nil), cfg.Recipients...),
		min:        rank(events.Severity(cfg.MinSeverity)),
		cooldown:   time.Duration(cfg.CooldownSeconds) * time.Second,
		log:        log,
		now:        time.Now,
		sent:       make(map[string]time.Time),
	}
}

// SetClock replaces the time source.
func (n *Notifier) SetClock(now func() time.Time) { n.now = now }

// Start subscribes to the bus and notifies in the background until ctx is
// done or the bus is closed.
func (n *Notifier) Start(ctx context.Context, bus eventbus.EventBus) <-chan struct{} {
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
				if a, ok := ev.(events.AlertEvent); ok {
					n.Notify(ctx, a)
				}
			}
		}
	}()
	return done
}

// Notify texts a single alert. It reports whether messages were sent.
func (n *Notifier) Notify(ctx context.Context, a events.AlertEvent) bool {
	if rank(a.Severity) < n.min || !n.claim(a) {
		return false
	}
	body := Format(a)
	sent := false
	for _, to := range n.recipients {
		if err := n.sender.SendSMS(ctx, to, body); err != nil {
			n.log.Errorf("alert sms: %v", err)
			continue
		}
		sent = true
	}
	if sent {
		n.log.Infof("alert %s texted to %d recipients", a.Kind, len(n.recipients))
	}
	return sent
}

func (n *Notifier) claim(a events.AlertEvent) bool {
	key := a.Kind + "/" + a.ResponderID
	now := n.now()
	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.sent[key]; ok && now.Sub(last) < n.cooldown {
		return false
	}
	n.sent[key] = now
	return true
}

// Format renders an alert as a short SMS body.
func Format(a events.AlertEvent) string {
	s := fmt.Sprintf("[%s] %s", a.Severity, a.Kind)
	if a.ResponderID != "" {
		s += " responder=" + a.ResponderID
	}
	if a.SessionID != "" {
		s += " session=" + a.SessionID
	}
	if a.Message != "" {
		s += ": " + a.Message
	}
	return s
}
