package api

import (
	"net/http"
	"time"
)

// triggerUpdate handles POST /api/admin/update: one synchronous update
// cycle, bypassing the timer. The caller blocks until the cycle completes.
func (s *Server) triggerUpdate(w http.ResponseWriter, r *http.Request) {
	out := s.sched.TriggerNow(r.Context())
	if !out.Success {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"status": "failed",
			"error":  out.Reason,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"players":     out.PlayerCount,
		"duration_ms": out.DurationMS,
	})
}

// schedulerStatus handles GET /api/admin/scheduler: the registered jobs and
// any pending retry, for operational visibility.
func (s *Server) schedulerStatus(w http.ResponseWriter, _ *http.Request) {
	jobs := s.sched.Jobs()
	status := "running"
	if !s.sched.Running() {
		status = "stopped"
	}

	var retryAt *time.Time
	if at, pending := s.sched.PendingRetry(); pending {
		retryAt = &at
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        status,
		"jobs":          jobs,
		"job_count":     len(jobs),
		"pending_retry": retryAt,
	})
}
