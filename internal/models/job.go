// -----------------------------------------------------------------------
// Job - Unit of asynchronous work delegated to the external scrape worker
// -----------------------------------------------------------------------

package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus tracks the scrape job lifecycle
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
)

// ProductPayload is one raw scrape result as delivered by the external
// worker. Field names follow the scraper's wire format.
type ProductPayload struct {
	ProductID       string              `json:"product_id"`
	Domain          string              `json:"domain"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Price           float64             `json:"price"`
	ImageURL        string              `json:"image_url"`
	Specs           map[string]string   `json:"specs"`
	Features        []string            `json:"features"`
	Reviews         []string            `json:"reviews"`
	Rating          float64             `json:"rating"`
	NumberOfReviews string              `json:"number_of_reviews"`
	Variants        map[string][]string `json:"variants"`
	QA              []string            `json:"qa"`
	URL             string              `json:"url"`
}

// Job represents a scrape delegated to the external worker. Lifecycle:
// created pending -> external callback marks completed and fills Result ->
// exactly one background reconciler consumes it -> deleted.
type Job struct {
	ID        string           `json:"job_id" badgerhold:"key"`
	UserID    string           `json:"user_id"`
	Action    ActionKind       `json:"action"` // empty for legacy direct-link jobs
	ScraperID string           `json:"scraper_id,omitempty"`
	URL       string           `json:"url"` // single URL or JSON-encoded list
	UserQuery string           `json:"user_query,omitempty"`
	Status    JobStatus        `json:"status"`
	Result    []ProductPayload `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	StartTime time.Time        `json:"start_time"`
	EndTime   *time.Time       `json:"end_time,omitempty"`
}

// JobUpdate is the scrape completion callback payload posted by the worker.
type JobUpdate struct {
	JobID   string           `json:"job_id"`
	Status  string           `json:"status"`
	URL     string           `json:"url,omitempty"`
	Result  []ProductPayload `json:"result"`
	Error   string           `json:"error,omitempty"`
	EndTime *time.Time       `json:"end_time,omitempty"`
}

// NewJob creates a pending job for a user
func NewJob(userID string, action ActionKind, userQuery, url string) *Job {
	return &Job{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		UserQuery: userQuery,
		URL:       url,
		Status:    JobStatusPending,
		StartTime: time.Now(),
	}
}
