// Package match exposes the matching service over HTTP.
package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/crisismatch/core/availability"
	"github.com/kilianp07/crisismatch/core/logger"
	"github.com/kilianp07/crisismatch/core/matching/logging"
	"github.com/kilianp07/crisismatch/core/model"
	"github.com/kilianp07/crisismatch/core/workload"
	inframetrics "github.com/kilianp07/crisismatch/infra/metrics"
)

// Matcher runs matches and closes sessions.
type Matcher interface {
	FindMatch(ctx context.Context, req model.MatchRequest) (model.Outcome, error)
	CompleteSession(ctx context.Context, o model.SessionOutcome) error
}

// Availability is the responder status view.
type Availability interface {
	GetAvailable(f availability.Filter) []model.ResponderStatus
	UpdateStatus(id string, status model.Status, md availability.Metadata) error
	Heartbeat(id string) error
	Get(id string) (model.ResponderStatus, error)
}

// Workload serves assessments, shift checks and capacity plans.
type Workload interface {
	Assess(ctx context.Context, responderID string) (model.WorkloadAssessment, error)
	RecordWellness(ctx context.Context, responderID string, w model.WellnessCheck) error
	ValidateShiftAssignment(ctx context.Context, responderID string, proposed model.Shift) (workload.ShiftValidation, error)
	GenerateCapacityPlan(ctx context.Context, start, end time.Time, granularity time.Duration) (workload.CapacityPlan, error)
}

// Pool exposes the emergency roster.
type Pool interface {
	Pool() model.EmergencyPool
}

// Services groups the collaborators behind the routes. Nil members disable
// their routes.
type Services struct {
	Matcher      Matcher
	Availability Availability
	Workload     Workload
	Pool         Pool
	Logs         logging.Store
	Gatherer     prometheus.Gatherer
}

type api struct {
	svc Services
	log logger.Logger
}

// NewRouter builds the HTTP routes. When token is non-empty every /api route
// requires an Authorization header with "Bearer <token>".
func NewRouter(svc Services, token string, log logger.Logger) *mux.Router {
	a := &api{svc: svc, log: log}
	r := mux.NewRouter()
	if svc.Gatherer != nil {
		r.Handle("/metrics", inframetrics.Handler(svc.Gatherer)).Methods(http.MethodGet)
	}
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	s := r.PathPrefix("/api").Subrouter()
	s.Use(bearer(token), logRequests(log))
	if svc.Matcher != nil {
		s.HandleFunc("/match", a.match).Methods(http.MethodPost)
		s.HandleFunc("/sessions/{id}/end", a.endSession).Methods(http.MethodPost)
	}
	if svc.Availability != nil {
		s.HandleFunc("/responders/available", a.available).Methods(http.MethodGet)
		s.HandleFunc("/responders/{id}/status", a.updateStatus).Methods(http.MethodPut)
		s.HandleFunc("/responders/{id}/heartbeat", a.heartbeat).Methods(http.MethodPost)
	}
	if svc.Workload != nil {
		s.HandleFunc("/responders/{id}/workload", a.workload).Methods(http.MethodGet)
		s.HandleFunc("/responders/{id}/wellness", a.wellness).Methods(http.MethodPost)
		s.HandleFunc("/responders/{id}/shifts/validate", a.validateShift).Methods(http.MethodPost)
		s.HandleFunc("/capacity/plan", a.capacityPlan).Methods(http.MethodGet)
	}
	if svc.Pool != nil {
		s.HandleFunc("/emergency/pool", a.pool).Methods(http.MethodGet)
	}
	if svc.Logs != nil {
		s.Handle("/match/logs", NewLogHandler(svc.Logs, "")).Methods(http.MethodGet)
	}
	return r
}

func bearer(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func logRequests(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debugw("http request", map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote":      r.RemoteAddr,
			})
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps sentinel errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrInvalidCriteria):
		code = http.StatusBadRequest
	case errors.Is(err, model.ErrResponderNotFound):
		code = http.StatusNotFound
	case errors.Is(err, model.ErrCapacityExceeded):
		code = http.StatusConflict
	case errors.Is(err, model.ErrMatchTimeout), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	case errors.Is(err, model.ErrDependencyUnavailable):
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidCriteria, err)
	}
	return nil
}
