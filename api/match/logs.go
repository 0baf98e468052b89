package match

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/crisismatch/core/matching/logging"
	"github.com/kilianp07/crisismatch/core/model"
)

// NewLogHandler returns an HTTP handler exposing match decisions via GET /api/match/logs.
// Requests must include an Authorization header with "Bearer <token>" when token is non-empty.
func NewLogHandler(store logging.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		q := logging.Query{}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		q.ResponderID = r.URL.Query().Get("responder_id")
		q.SessionID = r.URL.Query().Get("session_id")
		if u := model.Urgency(r.URL.Query().Get("urgency")); u.Valid() {
			q.Urgency = u
		}
		if p := r.URL.Query().Get("path"); p != "" {
			q.Path = model.MatchPath(p)
		}
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				q.Limit = n
			}
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []logging.DecisionRecord{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
