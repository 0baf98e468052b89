package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crisismatch/config"
	"github.com/kilianp07/crisismatch/core/availability"
	"github.com/kilianp07/crisismatch/core/events"
	"github.com/kilianp07/crisismatch/core/matching/logging"
	"github.com/kilianp07/crisismatch/core/model"
	"github.com/kilianp07/crisismatch/infra/logger"
	"github.com/kilianp07/crisismatch/internal/eventbus"
)

const roster = `responders:
  - id: r1
    name: Sam
    role: RESPONDER
    specialties: [SUICIDE_PREVENTION, TRAUMA]
    languages:
      - code: en
        proficiency: NATIVE
        primary: true
    years_experience: 8
    total_sessions: 400
    average_rating: 4.6
    max_concurrent_sessions: 2
    emergency_available: true
    location:
      country: US
  - id: r2
    name: Lee
    role: SUPERVISOR
    specialties: [GRIEF]
    languages:
      - code: es
        proficiency: NATIVE
        primary: true
    max_concurrent_sessions: 1
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	seed := filepath.Join(dir, "roster.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(roster), 0o644))
	cfg := config.Defaults()
	cfg.Profiles.Seed = seed
	cfg.DecisionLog.Path = filepath.Join(dir, "decisions.jsonl")
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return &cfg
}

func TestNewOfflineMatches(t *testing.T) {
	ctx := context.Background()
	svc, err := New(ctx, testConfig(t), Offline(), AllOnline())
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	assert.Len(t, svc.Registry.Snapshot(), 2)
	out, err := svc.Engine.FindMatch(ctx, model.MatchRequest{
		SessionID:           "s1",
		Urgency:             model.UrgencyHigh,
		Severity:            7,
		RequiredSpecialties: []model.Specialty{model.SpecialtySuicidePrevention},
		RequiredLanguages:   []model.LanguageRequirement{{Code: "en", MinProficiency: model.ProficiencyFluent}},
		Location:            model.Location{Country: "US"},
	})
	require.NoError(t, err)
	res, ok := out.Matched()
	require.True(t, ok, "expected a match, got %+v", out.Fallback)
	assert.Equal(t, "r1", res.ResponderID)

	recs, err := svc.logs.Query(ctx, logging.Query{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "r1", recs[0].ResponderID)

	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRespondersStartOffline(t *testing.T) {
	svc, err := New(context.Background(), testConfig(t), Offline())
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()
	assert.Empty(t, svc.Registry.GetAvailable(availability.Filter{}))
	st, err := svc.Registry.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOffline, st.Status)
	assert.Equal(t, 2, st.MaxConcurrentSessions)
}

func TestNewRejectsBadSeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Profiles.Seed = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(context.Background(), cfg, Offline())
	assert.Error(t, err)
}

func TestIntervener(t *testing.T) {
	reg := availability.NewRegistry(availability.DefaultConfig(), logger.NopLogger{})
	require.NoError(t, reg.Register(model.ResponderStatus{ID: "r1", Status: model.StatusOnline}))
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe()
	at := time.Date(2024, 3, 6, 3, 0, 0, 0, time.UTC)
	iv := intervener{registry: reg, bus: bus, now: func() time.Time { return at }}

	require.NoError(t, iv.ForceBreak(context.Background(), "r1", "burnout score 0.91"))
	st, err := reg.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusBreak, st.Status)

	require.NoError(t, iv.RequestSupervisorReview(context.Background(), "r1", "burnout score 0.72"))
	select {
	case ev := <-sub:
		a, ok := ev.(events.AlertEvent)
		require.True(t, ok)
		assert.Equal(t, AlertSupervisorReview, a.Kind)
		assert.Equal(t, events.SeverityWarning, a.Severity)
		assert.Equal(t, at, a.At)
	case <-time.After(time.Second):
		t.Fatalf("no alert published")
	}
}

func TestRelayAvailability(t *testing.T) {
	reg := availability.NewRegistry(availability.DefaultConfig(), logger.NopLogger{})
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	done := relayAvailability(ctx, reg, bus)

	require.NoError(t, reg.UpdateStatus("r1", model.StatusOnline, availability.Metadata{}))
	select {
	case ev := <-sub:
		ch, ok := ev.(events.AvailabilityChanged)
		require.True(t, ok)
		assert.Equal(t, "r1", ch.ResponderID)
		assert.Equal(t, model.StatusOnline, ch.Current)
	case <-time.After(time.Second):
		t.Fatalf("availability change not relayed")
	}
	cancel()
	<-done
}
