package match

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crisismatch/core/availability"
	"github.com/kilianp07/crisismatch/core/matching/logging"
	"github.com/kilianp07/crisismatch/core/model"
	"github.com/kilianp07/crisismatch/core/workload"
	"github.com/kilianp07/crisismatch/infra/logger"
)

type fakeMatcher struct {
	outcomes map[string]model.Outcome
	ended    []model.SessionOutcome
}

func (f *fakeMatcher) FindMatch(_ context.Context, req model.MatchRequest) (model.Outcome, error) {
	if err := req.Validate(); err != nil {
		return model.Outcome{}, err
	}
	return f.outcomes[req.SessionID], nil
}

func (f *fakeMatcher) CompleteSession(_ context.Context, o model.SessionOutcome) error {
	if o.SessionID == "unknown" {
		return fmt.Errorf("session %s: %w", o.SessionID, model.ErrResponderNotFound)
	}
	f.ended = append(f.ended, o)
	return nil
}

type fakeWorkload struct {
	wellness map[string]model.WellnessCheck
	planGran time.Duration
}

func (f *fakeWorkload) Assess(_ context.Context, id string) (model.WorkloadAssessment, error) {
	if id == "ghost" {
		return model.WorkloadAssessment{}, fmt.Errorf("assess %s: %w", id, model.ErrResponderNotFound)
	}
	return model.WorkloadAssessment{ResponderID: id, Burnout: model.BurnoutRisk{Level: model.RiskMedium, Score: 0.4}}, nil
}

func (f *fakeWorkload) RecordWellness(_ context.Context, id string, w model.WellnessCheck) error {
	if f.wellness == nil {
		f.wellness = map[string]model.WellnessCheck{}
	}
	f.wellness[id] = w
	return nil
}

func (f *fakeWorkload) ValidateShiftAssignment(_ context.Context, _ string, s model.Shift) (workload.ShiftValidation, error) {
	return workload.ShiftValidation{IsValid: s.Duration() <= 12*time.Hour}, nil
}

func (f *fakeWorkload) GenerateCapacityPlan(_ context.Context, start, end time.Time, gran time.Duration) (workload.CapacityPlan, error) {
	f.planGran = gran
	return workload.CapacityPlan{Start: start, End: end, GranularityMinutes: int(gran.Minutes())}, nil
}

type fakePool struct{}

func (fakePool) Pool() model.EmergencyPool {
	return model.EmergencyPool{CriticalResponse: []string{"c1"}}
}

type fixture struct {
	srv     *httptest.Server
	matcher *fakeMatcher
	reg     *availability.Registry
	wl      *fakeWorkload
	logs    logging.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		matcher: &fakeMatcher{outcomes: map[string]model.Outcome{}},
		reg:     availability.NewRegistry(availability.DefaultConfig(), logger.NopLogger{}),
		wl:      &fakeWorkload{},
	}
	store, err := logging.Open(logging.Config{Backend: "jsonl", Path: filepath.Join(t.TempDir(), "decisions.jsonl")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	f.logs = store

	router := NewRouter(Services{
		Matcher:      f.matcher,
		Availability: f.reg,
		Workload:     f.wl,
		Pool:         fakePool{},
		Logs:         store,
		Gatherer:     prometheus.NewRegistry(),
	}, "tok", logger.NopLogger{})
	f.srv = httptest.NewServer(router)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer tok")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/api/emergency/pool")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(f.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMatchEndpoint(t *testing.T) {
	f := newFixture(t)
	f.matcher.outcomes["s1"] = model.Outcome{Result: &model.MatchResult{MatchID: "m1", SessionID: "s1", ResponderID: "r1", MatchScore: 0.82, Confidence: model.ConfidenceHigh}}
	f.matcher.outcomes["s2"] = model.Outcome{Fallback: &model.FallbackDecision{Strategy: model.FallbackResourcesOnly, Resources: []string{"988"}}}

	resp := f.do(t, http.MethodPost, "/api/match", model.MatchRequest{SessionID: "s1", Urgency: model.UrgencyHigh, Severity: 7})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Result struct {
			ResponderID string `json:"responderId"`
			Confidence  string `json:"confidence"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "r1", out.Result.ResponderID)
	assert.Equal(t, "HIGH", out.Result.Confidence)

	resp = f.do(t, http.MethodPost, "/api/match", model.MatchRequest{SessionID: "s2", Urgency: model.UrgencyLow, Severity: 2})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/match", map[string]any{"sessionId": "s3", "urgency": "SOON", "severity": 2})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/match", map[string]any{"sessionId": "s3", "bogus": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEndSession(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/sessions/s1/end", map[string]any{"resolved": true, "satisfaction": 4.5})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Len(t, f.matcher.ended, 1)
	assert.Equal(t, "s1", f.matcher.ended[0].SessionID)
	assert.True(t, f.matcher.ended[0].Completed)
	assert.Equal(t, 4.5, f.matcher.ended[0].Satisfaction)

	resp = f.do(t, http.MethodPost, "/api/sessions/unknown/end", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResponderRoutes(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPut, "/api/responders/r1/status", map[string]any{"status": "ONLINE", "max_sessions": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st model.ResponderStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, model.StatusOnline, st.Status)
	assert.Equal(t, 3, st.MaxConcurrentSessions)

	resp = f.do(t, http.MethodPut, "/api/responders/r1/status", map[string]any{"status": "NAPPING"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/responders/r1/heartbeat", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = f.do(t, http.MethodPost, "/api/responders/nobody/heartbeat", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/responders/available", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var avail []model.ResponderStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&avail))
	require.Len(t, avail, 1)
	assert.Equal(t, "r1", avail[0].ID)
}

func TestWorkloadRoutes(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/responders/r1/workload", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var as model.WorkloadAssessment
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&as))
	assert.Equal(t, model.RiskMedium, as.Burnout.Level)

	resp = f.do(t, http.MethodGet, "/api/responders/ghost/workload", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/responders/r1/wellness", model.WellnessCheck{BurnoutScore: 0.3, StressLevel: 4})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 4.0, f.wl.wellness["r1"].StressLevel)

	start := time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC)
	resp = f.do(t, http.MethodPost, "/api/responders/r1/shifts/validate", model.Shift{Start: start, End: start.Add(14 * time.Hour)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v workload.ShiftValidation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.False(t, v.IsValid)

	resp = f.do(t, http.MethodGet, "/api/capacity/plan?start=2024-03-06T00:00:00Z&granularity_minutes=30", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var plan workload.CapacityPlan
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&plan))
	assert.Equal(t, 30, plan.GranularityMinutes)
	assert.True(t, plan.End.Equal(start.Add(16*time.Hour)), "end defaults to start+24h")

	resp = f.do(t, http.MethodGet, "/api/capacity/plan?granularity_minutes=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPoolAndLogs(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/emergency/pool", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pool model.EmergencyPool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pool))
	assert.Equal(t, []string{"c1"}, pool.CriticalResponse)

	ctx := context.Background()
	require.NoError(t, f.logs.Append(ctx, logging.DecisionRecord{Timestamp: time.Now(), SessionID: "s1", Urgency: model.UrgencyHigh, Path: model.PathScored, ResponderID: "r1"}))
	require.NoError(t, f.logs.Append(ctx, logging.DecisionRecord{Timestamp: time.Now(), SessionID: "s2", Urgency: model.UrgencyLow, Path: model.PathFallback}))

	resp = f.do(t, http.MethodGet, "/api/match/logs?urgency=HIGH", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var recs []logging.DecisionRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "s1", recs[0].SessionID)
}

func TestLogHandlerOwnToken(t *testing.T) {
	store, err := logging.Open(logging.Config{Backend: "jsonl", Path: filepath.Join(t.TempDir(), "d.jsonl")})
	require.NoError(t, err)
	defer store.Close()
	h := NewLogHandler(store, "secret")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/match/logs", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/match/logs", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}
