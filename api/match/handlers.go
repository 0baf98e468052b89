package match

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/kilianp07/crisismatch/core/availability"
	"github.com/kilianp07/crisismatch/core/model"
)

func (a *api) match(w http.ResponseWriter, r *http.Request) {
	var req model.MatchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	out, err := a.svc.Matcher.FindMatch(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	code := http.StatusOK
	if _, ok := out.Matched(); !ok {
		code = http.StatusAccepted
	}
	writeJSON(w, code, out)
}

type endSessionRequest struct {
	ResponderID  string  `json:"responder_id"`
	Resolved     bool    `json:"resolved"`
	Completed    *bool   `json:"completed"`
	Satisfaction float64 `json:"satisfaction"`
	// ResponseTimeSeconds is the time to first responder contact.
	ResponseTimeSeconds float64 `json:"response_time_seconds"`
}

func (a *api) endSession(w http.ResponseWriter, r *http.Request) {
	var body endSessionRequest
	if r.ContentLength != 0 {
		if err := decode(r, &body); err != nil {
			writeError(w, err)
			return
		}
	}
	o := model.SessionOutcome{
		SessionID:    mux.Vars(r)["id"],
		ResponderID:  body.ResponderID,
		Resolved:     body.Resolved,
		Satisfaction: body.Satisfaction,
		ResponseTime: time.Duration(body.ResponseTimeSeconds * float64(time.Second)),
		Completed:    body.Completed == nil || *body.Completed,
	}
	if err := a.svc.Matcher.CompleteSession(r.Context(), o); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) available(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := availability.Filter{
		IncludeEmergencyOnly:   q.Get("include_emergency_only") == "true",
		EmergencyAvailableOnly: q.Get("emergency_available") == "true",
	}
	writeJSON(w, http.StatusOK, a.svc.Availability.GetAvailable(f))
}

type statusRequest struct {
	Status             model.Status    `json:"status"`
	MaxSessions        *int            `json:"max_sessions"`
	EmergencyAvailable *bool           `json:"emergency_available"`
	Location           *model.Location `json:"location"`
	Reason             string          `json:"reason"`
}

func (a *api) updateStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body statusRequest
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	md := availability.Metadata{
		MaxConcurrentSessions: body.MaxSessions,
		EmergencyAvailable:    body.EmergencyAvailable,
		Location:              body.Location,
		Reason:                body.Reason,
	}
	if err := a.svc.Availability.UpdateStatus(id, body.Status, md); err != nil {
		writeError(w, err)
		return
	}
	st, err := a.svc.Availability.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *api) heartbeat(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Availability.Heartbeat(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) workload(w http.ResponseWriter, r *http.Request) {
	as, err := a.svc.Workload.Assess(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, as)
}

func (a *api) wellness(w http.ResponseWriter, r *http.Request) {
	var wc model.WellnessCheck
	if err := decode(r, &wc); err != nil {
		writeError(w, err)
		return
	}
	if err := a.svc.Workload.RecordWellness(r.Context(), mux.Vars(r)["id"], wc); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) validateShift(w http.ResponseWriter, r *http.Request) {
	var shift model.Shift
	if err := decode(r, &shift); err != nil {
		writeError(w, err)
		return
	}
	v, err := a.svc.Workload.ValidateShiftAssignment(r.Context(), mux.Vars(r)["id"], shift)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// capacityPlan accepts start and end as RFC3339 and granularity in minutes.
// Defaults cover the next 24 hours hourly.
func (a *api) capacityPlan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start := time.Now().UTC().Truncate(time.Hour)
	end := start.Add(24 * time.Hour)
	gran := time.Hour
	var err error
	if s := q.Get("start"); s != "" {
		if start, err = time.Parse(time.RFC3339, s); err != nil {
			writeError(w, fmt.Errorf("%w: start: %v", model.ErrInvalidCriteria, err))
			return
		}
		if q.Get("end") == "" {
			end = start.Add(24 * time.Hour)
		}
	}
	if s := q.Get("end"); s != "" {
		if end, err = time.Parse(time.RFC3339, s); err != nil {
			writeError(w, fmt.Errorf("%w: end: %v", model.ErrInvalidCriteria, err))
			return
		}
	}
	if s := q.Get("granularity_minutes"); s != "" {
		m, err := strconv.Atoi(s)
		if err != nil || m <= 0 {
			writeError(w, fmt.Errorf("%w: granularity_minutes must be a positive integer", model.ErrInvalidCriteria))
			return
		}
		gran = time.Duration(m) * time.Minute
	}
	plan, err := a.svc.Workload.GenerateCapacityPlan(r.Context(), start, end, gran)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (a *api) pool(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Pool.Pool())
}
