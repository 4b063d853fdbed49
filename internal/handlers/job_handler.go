// -----------------------------------------------------------------------
// Job Handler - Scrape job creation and in-flight visibility
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/merx/internal/interfaces"
)

// JobHandler exposes the pending job queue. Completed jobs disappear once
// reconciled, so listings only ever show work in flight.
type JobHandler struct {
	storage interfaces.JobStorage
	jobs    interfaces.JobService
	logger  arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(storage interfaces.JobStorage, jobs interfaces.JobService, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		storage: storage,
		jobs:    jobs,
		logger:  logger,
	}
}

// JobsHandler dispatches /api/jobs:
//
//	GET  /api/jobs  - list the authenticated user's pending jobs
//	POST /api/jobs  - create a scrape job from a product URL
func (h *JobHandler) JobsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listJobs(w, r)
	case http.MethodPost:
		h.createJob(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// JobRoutes handles GET /api/jobs/{id} for the authenticated user
func (h *JobHandler) JobRoutes(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	userID := UserIDFromContext(r.Context())
	if userID == "" {
		WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	id, sub := splitPathID(r.URL.Path, "/api/jobs")
	if id == "" || sub != "" {
		http.NotFound(w, r)
		return
	}

	job, err := h.storage.GetJob(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", id).Msg("Failed to load job")
		WriteError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job == nil || job.UserID != userID {
		WriteError(w, http.StatusNotFound, "job not found")
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

func (h *JobHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	jobs, err := h.storage.ListJobs(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(jobs),
		"jobs":  jobs,
	})
}

type createJobRequest struct {
	URL string `json:"url"`
}

func (h *JobHandler) createJob(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		WriteError(w, http.StatusBadRequest, "url is required")
		return
	}

	// Same pipeline as a pasted link: known products are answered
	// immediately, everything else becomes a scrape job.
	reply, err := h.jobs.HandleLink(r.Context(), userID, req.URL)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to create job from URL")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, reply)
}
