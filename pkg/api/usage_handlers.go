package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/grump-ai/gateway/pkg/usage"
)

// GetUserUsage returns the user's call records for the current UTC month,
// plus the derived call count used as an audit cross-check against the
// quota ledger.
func (s *Server) GetUserUsage(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}

	from, to := currentMonthWindow()
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		to = t
	}

	records := s.recorder.ForUser(userID, from, to)
	if records == nil {
		records = []usage.Record{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":            userID,
		"records":            records,
		"monthly_call_count": s.recorder.MonthlyCallCount(userID),
	})
}

// GetUserQuota reports the user's tier and remaining quota without touching
// the credential pool.
func (s *Server) GetUserQuota(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}

	tier := s.catalog.Get(s.subs.TierFor(userID))
	remaining := s.governor.Remaining(userID, tier)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":   userID,
		"tier":      tier.ID,
		"limit":     tier.MonthlyCallLimit,
		"remaining": remaining,
	})
}

// ListTiers returns the tier catalog
func (s *Server) ListTiers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.List())
}

func currentMonthWindow() (time.Time, time.Time) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}
