// -----------------------------------------------------------------------
// Status Handler - Health, version and runtime counters
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/merx/internal/common"
	"github.com/ternarybob/merx/internal/interfaces"
)

// StatusHandler serves liveness and status endpoints
type StatusHandler struct {
	jobStorage interfaces.JobStorage
	startTime  time.Time
	logger     arbor.ILogger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(jobStorage interfaces.JobStorage, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		jobStorage: jobStorage,
		startTime:  time.Now(),
		logger:     logger,
	}
}

// HealthHandler handles GET /health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VersionHandler handles GET /api/version
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// StatusHandler handles GET /api/status
func (h *StatusHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	pending := 0
	if jobs, err := h.jobStorage.ListJobs(r.Context(), ""); err == nil {
		pending = len(jobs)
	} else {
		h.logger.Warn().Err(err).Msg("Failed to count pending jobs for status")
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"version":      common.GetVersion(),
		"uptime":       time.Since(h.startTime).Round(time.Second).String(),
		"pending_jobs": pending,
		"goroutines":   common.GetGoroutineCount(),
	})
}
