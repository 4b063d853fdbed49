// Package scraper provides a client for the external scrape scheduling
// service. Scrapes complete asynchronously; results arrive through the
// scrape update callback endpoint.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/merx/internal/common"
	"github.com/ternarybob/merx/internal/interfaces"
)

const (
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 5

	// schedulePath is the scheduling endpoint on the scrape service.
	schedulePath = "/schedule.json"
)

// Client schedules scrape jobs. Implements interfaces.ScraperClient.
type Client struct {
	endpoint   string
	project    string
	spider     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewClient creates a new scrape service client from configuration.
func NewClient(config *common.ScraperConfig, logger arbor.ILogger, opts ...ClientOption) *Client {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		endpoint: strings.TrimRight(config.Endpoint, "/"),
		project:  config.Project,
		spider:   config.Spider,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an error response from the scrape service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scraper API error: %s (status %d)", e.Message, e.StatusCode)
}

// Schedule submits a scrape request. Any non-200 response is an error; the
// caller is expected to roll back the pending job record.
func (c *Client) Schedule(ctx context.Context, req *interfaces.ScheduleRequest) error {
	if req == nil || req.JobID == "" || req.URL == "" {
		return fmt.Errorf("job ID and URL are required")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	project := req.Project
	if project == "" {
		project = c.project
	}
	spider := req.Spider
	if spider == "" {
		spider = c.spider
	}

	form := url.Values{}
	form.Set("project", project)
	form.Set("spider", spider)
	form.Set("job_id", req.JobID)
	form.Set("url", req.URL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+schedulePath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if c.logger != nil {
		c.logger.Debug().
			Str("job_id", req.JobID).
			Str("spider", spider).
			Str("url", req.URL).
			Msg("Scheduling scrape")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	return nil
}
