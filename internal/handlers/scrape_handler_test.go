package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/merx/internal/common"
	"github.com/ternarybob/merx/internal/models"
)

type fakeJobService struct {
	callbackErr error
	received    []*models.JobUpdate
}

func (f *fakeJobService) CreateScrapeJob(context.Context, string, string, string, string) (*models.Job, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeJobService) HandleLink(context.Context, string, string) (*models.Message, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeJobService) HandleCallback(_ context.Context, update *models.JobUpdate) error {
	f.received = append(f.received, update)
	return f.callbackErr
}

func postCallback(t *testing.T, handler *ScrapeHandler, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/scrape/update", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.UpdateHandler(rec, req)
	return rec
}

func TestUpdateHandlerAcceptsCallback(t *testing.T) {
	jobs := &fakeJobService{}
	handler := NewScrapeHandler(jobs, common.GetLogger())

	rec := postCallback(t, handler, map[string]interface{}{
		"job_id": "job-1",
		"status": "completed",
		"result": []map[string]interface{}{{"product_id": "B000000001"}},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, jobs.received, 1)
	assert.Equal(t, "job-1", jobs.received[0].JobID)
	require.Len(t, jobs.received[0].Result, 1)
	assert.Equal(t, "B000000001", jobs.received[0].Result[0].ProductID)

	var response map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "success", response["status"])
	assert.Equal(t, "Product creation process started", response["message"])
}

func TestUpdateHandlerRejectsUnknownJob(t *testing.T) {
	jobs := &fakeJobService{callbackErr: fmt.Errorf("unknown job: job-x")}
	handler := NewScrapeHandler(jobs, common.GetLogger())

	rec := postCallback(t, handler, map[string]interface{}{"job_id": "job-x"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateHandlerRejectsBadRequests(t *testing.T) {
	handler := NewScrapeHandler(&fakeJobService{}, common.GetLogger())

	// Wrong method
	req := httptest.NewRequest(http.MethodGet, "/api/scrape/update", nil)
	rec := httptest.NewRecorder()
	handler.UpdateHandler(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	// Malformed body
	req = httptest.NewRequest(http.MethodPost, "/api/scrape/update", bytes.NewReader([]byte("{not json")))
	rec = httptest.NewRecorder()
	handler.UpdateHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSplitPathID(t *testing.T) {
	tests := []struct {
		path string
		id   string
		sub  string
	}{
		{"/api/products/B000000001", "B000000001", ""},
		{"/api/products/B000000001/regenerate", "B000000001", "regenerate"},
		{"/api/products/B000000001/errors", "B000000001", "errors"},
		{"/api/products/", "", ""},
	}

	for _, tt := range tests {
		id, sub := splitPathID(tt.path, "/api/products")
		assert.Equal(t, tt.id, id, tt.path)
		assert.Equal(t, tt.sub, sub, tt.path)
	}
}
