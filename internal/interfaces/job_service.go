package interfaces

import (
	"context"

	"github.com/ternarybob/merx/internal/models"
)

// JobService owns the scrape job lifecycle: creation, submission to the
// external scraper, callback consumption and result reconciliation.
type JobService interface {
	// CreateScrapeJob persists a pending job and submits it to the scraper.
	// On submission failure the job record is removed and an error returned.
	CreateScrapeJob(ctx context.Context, userID, action, userQuery, url string) (*models.Job, error)

	// HandleLink processes a product link sent by the user. When the product
	// is already known the reply carries its card immediately, otherwise a
	// scrape job is started.
	HandleLink(ctx context.Context, userID, rawURL string) (*models.Message, error)

	// HandleCallback consumes a scraper result. It returns an error when the
	// referenced job does not exist or was already consumed; reconciliation
	// of accepted results continues in the background.
	HandleCallback(ctx context.Context, update *models.JobUpdate) error
}
