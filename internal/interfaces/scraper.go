package interfaces

import "context"

// ScheduleRequest is the payload submitted to the external scraping service.
type ScheduleRequest struct {
	Project string `json:"project"`
	Spider  string `json:"spider"`
	JobID   string `json:"job_id"`
	URL     string `json:"url"`
}

// ScraperClient submits scrape requests to the external scraping service.
// Results arrive later through the scrape update callback endpoint.
type ScraperClient interface {
	Schedule(ctx context.Context, req *ScheduleRequest) error
}
