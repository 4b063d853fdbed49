package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/merx/internal/common"
	"github.com/ternarybob/merx/internal/interfaces"
)

func testConfig(endpoint string) *common.ScraperConfig {
	return &common.ScraperConfig{
		Endpoint:       endpoint,
		Project:        "default",
		Spider:         "amazon",
		RequestTimeout: 5 * time.Second,
	}
}

func TestSchedulePostsForm(t *testing.T) {
	var gotPath, gotProject, gotSpider, gotJobID, gotURL string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotProject = r.PostFormValue("project")
		gotSpider = r.PostFormValue("spider")
		gotJobID = r.PostFormValue("job_id")
		gotURL = r.PostFormValue("url")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), arbor.NewLogger())

	err := client.Schedule(context.Background(), &interfaces.ScheduleRequest{
		JobID: "job-1",
		URL:   "https://www.amazon.com/dp/B0ABCDEFGH",
	})
	require.NoError(t, err)

	assert.Equal(t, "/schedule.json", gotPath)
	assert.Equal(t, "default", gotProject)
	assert.Equal(t, "amazon", gotSpider)
	assert.Equal(t, "job-1", gotJobID)
	assert.Equal(t, "https://www.amazon.com/dp/B0ABCDEFGH", gotURL)
}

func TestScheduleNon200IsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "spider not found", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), arbor.NewLogger())

	err := client.Schedule(context.Background(), &interfaces.ScheduleRequest{
		JobID: "job-1",
		URL:   "https://www.amazon.com/dp/B0ABCDEFGH",
	})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestScheduleRequiresJobAndURL(t *testing.T) {
	client := NewClient(testConfig("http://localhost:6800"), arbor.NewLogger())

	assert.Error(t, client.Schedule(context.Background(), nil))
	assert.Error(t, client.Schedule(context.Background(), &interfaces.ScheduleRequest{JobID: "job-1"}))
	assert.Error(t, client.Schedule(context.Background(), &interfaces.ScheduleRequest{URL: "https://x"}))
}
