package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crisismatch/core/events"
	"github.com/kilianp07/crisismatch/infra/logger"
	"github.com/kilianp07/crisismatch/internal/eventbus"
)

type sentMessage struct {
	To   string
	Body string
}

type mockSender struct {
	mu   sync.Mutex
	sent []sentMessage
	fail map[string]bool
}

func (m *mockSender) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[to] {
		return errors.New("undeliverable")
	}
	m.sent = append(m.sent, sentMessage{To: to, Body: body})
	return nil
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func TestNotifySeverityAndCooldown(t *testing.T) {
	s := &mockSender{}
	n := NewNotifier(Config{Recipients: []string{"+15550001", "+15550002"}}, s, logger.NopLogger{})
	now := time.Date(2024, 3, 6, 3, 0, 0, 0, time.UTC)
	n.SetClock(func() time.Time { return now })
	ctx := context.Background()

	assert.False(t, n.Notify(ctx, events.AlertEvent{Kind: "coverage_gap", Severity: events.SeverityWarning}))
	assert.Equal(t, 0, s.count())

	crit := events.AlertEvent{Kind: "critical_burnout", Severity: events.SeverityCritical, ResponderID: "r1", Message: "score 0.91"}
	assert.True(t, n.Notify(ctx, crit))
	require.Equal(t, 2, s.count())
	assert.Equal(t, "[critical] critical_burnout responder=r1: score 0.91", s.sent[0].Body)

	assert.False(t, n.Notify(ctx, crit), "repeat inside cooldown")
	now = now.Add(11 * time.Minute)
	assert.True(t, n.Notify(ctx, crit))
	assert.Equal(t, 4, s.count())
}

func TestNotifyPartialFailure(t *testing.T) {
	s := &mockSender{fail: map[string]bool{"+1bad": true}}
	n := NewNotifier(Config{Recipients: []string{"+1bad", "+1good"}, MinSeverity: "warning"}, s, logger.NopLogger{})
	assert.True(t, n.Notify(context.Background(), events.AlertEvent{Kind: "unmatched_request", Severity: events.SeverityWarning, SessionID: "s1"}))
	require.Equal(t, 1, s.count())
	assert.Equal(t, "+1good", s.sent[0].To)
}

func TestNotifierConsumesBus(t *testing.T) {
	s := &mockSender{}
	n := NewNotifier(Config{Recipients: []string{"+1"}}, s, logger.NopLogger{})
	bus := eventbus.New()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	done := n.Start(ctx, bus)

	bus.Publish(events.MatchEvent{SessionID: "s1"})
	bus.Publish(events.AlertEvent{Kind: "coverage_gap", Severity: events.SeverityCritical})
	require.Eventually(t, func() bool { return s.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestConfigValidate(t *testing.T) {
	c := Config{Enabled: true}
	c.SetDefaults()
	assert.Error(t, c.Validate())
	c.Recipients = []string{"+1"}
	assert.NoError(t, c.Validate())
	c.MinSeverity = "loud"
	assert.Error(t, c.Validate())
}

func TestNewTwilioSenderRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")
	_, err := NewTwilioSender(Config{})
	assert.Error(t, err)
	_, err = NewTwilioSender(Config{AccountSID: "AC123", AuthToken: "tok"})
	assert.Error(t, err)
	snd, err := NewTwilioSender(Config{AccountSID: "AC123", AuthToken: "tok", From: "+15550000"})
	require.NoError(t, err)
	assert.Equal(t, "+15550000", snd.from)
}
