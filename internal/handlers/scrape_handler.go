// -----------------------------------------------------------------------
// Scrape Handler - Callback endpoint for the external scraping service
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/merx/internal/interfaces"
	"github.com/ternarybob/merx/internal/models"
)

// ScrapeHandler receives scrape completion callbacks. The endpoint is
// unauthenticated; a callback is only accepted when it references a live
// pending job, which acts as the shared secret.
type ScrapeHandler struct {
	jobService interfaces.JobService
	logger     arbor.ILogger
}

// NewScrapeHandler creates a new scrape callback handler
func NewScrapeHandler(jobService interfaces.JobService, logger arbor.ILogger) *ScrapeHandler {
	return &ScrapeHandler{
		jobService: jobService,
		logger:     logger,
	}
}

// UpdateHandler handles POST /api/scrape/update. Unknown or already consumed
// jobs are rejected with 400 so the scraper stops retrying them.
func (h *ScrapeHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var update models.JobUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.jobService.HandleCallback(r.Context(), &update); err != nil {
		h.logger.Warn().
			Err(err).
			Str("job_id", update.JobID).
			Msg("Rejected scrape callback")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteSuccess(w, "Product creation process started")
}

// splitPathID extracts the {id} segment from paths like /api/products/{id}
// and an optional trailing subresource like /api/products/{id}/errors.
func splitPathID(path, prefix string) (id, sub string) {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return "", ""
	}
	parts := strings.SplitN(rest, "/", 2)
	id = parts[0]
	if len(parts) == 2 {
		sub = parts[1]
	}
	return id, sub
}
