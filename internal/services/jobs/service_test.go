package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/merx/internal/common"
	"github.com/ternarybob/merx/internal/interfaces"
	"github.com/ternarybob/merx/internal/models"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type memoryJobs struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
}

func newMemoryJobs() *memoryJobs {
	return &memoryJobs{jobs: make(map[string]*models.Job)}
}

func (m *memoryJobs) SaveJob(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *job
	m.jobs[job.ID] = &clone
	return nil
}

func (m *memoryJobs) GetJob(_ context.Context, jobID string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, nil
	}
	clone := *job
	return &clone, nil
}

func (m *memoryJobs) ListJobs(_ context.Context, userID string) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Job
	for _, job := range m.jobs {
		if userID == "" || job.UserID == userID {
			clone := *job
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memoryJobs) ListPendingOlderThan(_ context.Context, cutoff time.Time) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Job
	for _, job := range m.jobs {
		if job.Status == models.JobStatusPending && job.StartTime.Before(cutoff) {
			clone := *job
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memoryJobs) DeleteJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
	return nil
}

func (m *memoryJobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

type fakeProducts struct {
	mu         sync.Mutex
	existing   map[string]*models.Product
	created    []*models.Product
	violations map[string][]string
	audits     []*models.ProductError
	enriched   []string
	enrichErr  error
	createErr  map[string]error
}

func newFakeProducts() *fakeProducts {
	return &fakeProducts{
		existing:   make(map[string]*models.Product),
		violations: make(map[string][]string),
		createErr:  make(map[string]error),
	}
}

func (f *fakeProducts) Resolve(_ context.Context, productID, _ string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[productID], nil
}

func (f *fakeProducts) Validate(product *models.Product) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.violations[product.ProductID]
}

func (f *fakeProducts) Create(_ context.Context, product *models.Product) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr[product.ProductID]; err != nil {
		return nil, err
	}
	if stored, ok := f.existing[product.ProductID]; ok {
		return stored, nil
	}
	f.existing[product.ProductID] = product
	f.created = append(f.created, product)
	return product, nil
}

func (f *fakeProducts) RecordError(_ context.Context, productErr *models.ProductError) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audits = append(f.audits, productErr)
	return nil
}

func (f *fakeProducts) Enrich(_ context.Context, product *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enrichErr != nil {
		return f.enrichErr
	}
	f.enriched = append(f.enriched, product.ProductID)
	return nil
}

func (f *fakeProducts) Regenerate(_ context.Context, productID string) (*models.Product, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeProducts) Ask(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (f *fakeProducts) createdIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.created))
	for _, p := range f.created {
		ids = append(ids, p.ProductID)
	}
	return ids
}

type fakeConversations struct {
	mu       sync.Mutex
	appended map[string][]*models.Message
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{appended: make(map[string][]*models.Message)}
}

func (f *fakeConversations) GetOrCreate(_ context.Context, userID string) (*models.Conversation, error) {
	return models.NewConversation(userID), nil
}

func (f *fakeConversations) AppendMessages(_ context.Context, userID string, messages ...*models.Message) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended[userID] = append(f.appended[userID], messages...)
	return nil, nil
}

func (f *fakeConversations) Delete(_ context.Context, userID string) error {
	return nil
}

func (f *fakeConversations) messages(userID string) []*models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Message, len(f.appended[userID]))
	copy(out, f.appended[userID])
	return out
}

type fakeScraper struct {
	mu       sync.Mutex
	requests []*interfaces.ScheduleRequest
	err      error
}

func (f *fakeScraper) Schedule(_ context.Context, req *interfaces.ScheduleRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.requests = append(f.requests, req)
	return nil
}

func (f *fakeScraper) scheduled() []*interfaces.ScheduleRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*interfaces.ScheduleRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

type scriptedCompletion struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (s *scriptedCompletion) Complete(_ context.Context, _ []interfaces.Message, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls >= len(s.responses) {
		return "", fmt.Errorf("no scripted response for call %d", s.calls)
	}
	response := s.responses[s.calls]
	s.calls++
	return response, nil
}

func (s *scriptedCompletion) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (s *scriptedCompletion) Close() error { return nil }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type testHarness struct {
	service       *Service
	storage       *memoryJobs
	products      *fakeProducts
	conversations *fakeConversations
	scraper       *fakeScraper
	completion    *scriptedCompletion
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		storage:       newMemoryJobs(),
		products:      newFakeProducts(),
		conversations: newFakeConversations(),
		scraper:       &fakeScraper{},
		completion:    &scriptedCompletion{},
	}
	h.service = NewService(
		h.storage,
		h.products,
		h.conversations,
		h.completion,
		h.scraper,
		nil,
		Settings{AffiliateTag: "070777-20", BatchSize: 2, MaxValidated: 5},
		common.GetLogger(),
	)
	return h
}

func payload(id string) models.ProductPayload {
	return models.ProductPayload{
		ProductID:   id,
		Domain:      "amazon.com",
		Title:       "Product " + id,
		Description: "A test product",
		Price:       19.99,
		ImageURL:    "https://img.example.com/" + id + ".jpg",
		Specs:       map[string]string{"color": "black"},
		Features:    []string{"feature"},
		Rating:      4.2,
		URL:         "https://www.amazon.com/dp/" + id,
	}
}

func waitForMessages(t *testing.T, conversations *fakeConversations, userID string, n int) []*models.Message {
	t.Helper()
	var got []*models.Message
	require.Eventually(t, func() bool {
		got = conversations.messages(userID)
		return len(got) >= n
	}, 2*time.Second, 10*time.Millisecond)
	return got
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCreateScrapeJobRollsBackOnScheduleFailure(t *testing.T) {
	h := newTestHarness(t)
	h.scraper.err = fmt.Errorf("scraper unavailable")

	_, err := h.service.CreateScrapeJob(context.Background(), "user-1", string(models.ActionLink), "", "https://www.amazon.com/dp/B000000001")
	require.Error(t, err)
	assert.Equal(t, 0, h.storage.count())
}

func TestHandleLinkRejectsNonMarketplaceURL(t *testing.T) {
	h := newTestHarness(t)

	reply, err := h.service.HandleLink(context.Background(), "user-1", "https://example.com/dp/B000000001")
	require.NoError(t, err)
	assert.Equal(t, msgUnsupportedLink, reply.Content)
	assert.Empty(t, h.scraper.scheduled())
}

func TestHandleLinkAnswersKnownProductImmediately(t *testing.T) {
	h := newTestHarness(t)
	h.products.existing["B000000001"] = &models.Product{
		ProductID: "B000000001",
		Title:     "Known Product",
	}

	reply, err := h.service.HandleLink(context.Background(), "user-1", "https://www.amazon.com/dp/B000000001")
	require.NoError(t, err)
	assert.Equal(t, msgProductReady, reply.Content)
	require.Len(t, reply.Products, 1)
	assert.Equal(t, "B000000001", reply.Products[0].ProductID)
	assert.Empty(t, h.scraper.scheduled(), "known product should not be rescraped")
}

func TestHandleLinkSchedulesScrapeForUnknownProduct(t *testing.T) {
	h := newTestHarness(t)

	reply, err := h.service.HandleLink(context.Background(), "user-1", "https://www.amazon.com/dp/B000000002")
	require.NoError(t, err)
	assert.Equal(t, msgLinkAccepted, reply.Content)

	scheduled := h.scraper.scheduled()
	require.Len(t, scheduled, 1)
	assert.Equal(t, "https://www.amazon.com/dp/B000000002", scheduled[0].URL)
	assert.Equal(t, 1, h.storage.count())

	// Both sides of the exchange are persisted
	messages := h.conversations.messages("user-1")
	require.Len(t, messages, 2)
	assert.Equal(t, models.RoleUser, messages[0].Role)
	assert.Equal(t, "https://www.amazon.com/dp/B000000002", messages[0].Content)
	assert.Equal(t, msgLinkAccepted, messages[1].Content)
}

func TestHandleCallbackUnknownJob(t *testing.T) {
	h := newTestHarness(t)

	err := h.service.HandleCallback(context.Background(), &models.JobUpdate{JobID: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job")
}

func TestCallbackReconcilesLinkJobAndConsumesIt(t *testing.T) {
	h := newTestHarness(t)

	job, err := h.service.CreateScrapeJob(context.Background(), "user-1", string(models.ActionLink), "", "https://www.amazon.com/dp/B000000003")
	require.NoError(t, err)

	err = h.service.HandleCallback(context.Background(), &models.JobUpdate{
		JobID:  job.ID,
		Status: "completed",
		Result: []models.ProductPayload{payload("B000000003")},
	})
	require.NoError(t, err)

	messages := waitForMessages(t, h.conversations, "user-1", 1)
	assert.Equal(t, msgProductReady, messages[0].Content)
	require.Len(t, messages[0].Products, 1)
	assert.Equal(t, "B000000003", messages[0].Products[0].ProductID)
	assert.Contains(t, messages[0].Products[0].AffiliateURL, "tag=070777-20")

	// Consumed: the job is gone and a redelivery is rejected
	require.Eventually(t, func() bool { return h.storage.count() == 0 }, 2*time.Second, 10*time.Millisecond)
	err = h.service.HandleCallback(context.Background(), &models.JobUpdate{
		JobID:  job.ID,
		Status: "completed",
		Result: []models.ProductPayload{payload("B000000003")},
	})
	require.Error(t, err)

	assert.Equal(t, []string{"B000000003"}, h.products.createdIDs())
}

func TestCallbackWithEmptyResultDeliversApology(t *testing.T) {
	h := newTestHarness(t)

	job, err := h.service.CreateScrapeJob(context.Background(), "user-1", string(models.ActionLink), "", "https://www.amazon.com/dp/B000000004")
	require.NoError(t, err)

	err = h.service.HandleCallback(context.Background(), &models.JobUpdate{
		JobID:  job.ID,
		Status: "failed",
		Error:  "page not found",
	})
	require.NoError(t, err)

	messages := waitForMessages(t, h.conversations, "user-1", 1)
	assert.Equal(t, msgDetailsFailed, messages[0].Content)
	assert.Empty(t, messages[0].Products)
}

func TestValidationViolationsAreRecordedButDoNotBlock(t *testing.T) {
	h := newTestHarness(t)
	h.products.violations["B000000005"] = []string{"Price must be greater than 0"}

	job, err := h.service.CreateScrapeJob(context.Background(), "user-1", string(models.ActionLink), "", "https://www.amazon.com/dp/B000000005")
	require.NoError(t, err)

	err = h.service.HandleCallback(context.Background(), &models.JobUpdate{
		JobID:  job.ID,
		Status: "completed",
		Result: []models.ProductPayload{payload("B000000005")},
	})
	require.NoError(t, err)

	messages := waitForMessages(t, h.conversations, "user-1", 1)
	assert.Equal(t, msgProductReady, messages[0].Content)
	require.Eventually(t, func() bool {
		h.products.mu.Lock()
		defer h.products.mu.Unlock()
		return len(h.products.audits) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"B000000005"}, h.products.createdIDs())
}

func TestSearchReconciliationKeepsValidatedAndSpawnsDetailJob(t *testing.T) {
	h := newTestHarness(t)

	// Validator keeps 6 of 7 candidates; the cap trims to 5
	kept := []string{"B000000010", "B000000011", "B000000012", "B000000013", "B000000014", "B000000015"}
	var entries []string
	for _, id := range kept {
		entries = append(entries, fmt.Sprintf(`{"product_id": %q}`, id))
	}
	h.completion.responses = []string{
		fmt.Sprintf(`{"products": [%s], "message": "ok"}`, strings.Join(entries, ", ")),
	}

	job, err := h.service.CreateScrapeJob(context.Background(), "user-1", string(models.ActionSearchAmazon), "wireless earbuds", "https://www.amazon.com/s?k=wireless+earbuds")
	require.NoError(t, err)

	var payloads []models.ProductPayload
	for i := 0; i < 7; i++ {
		payloads = append(payloads, payload(fmt.Sprintf("B00000001%d", i)))
	}
	err = h.service.HandleCallback(context.Background(), &models.JobUpdate{
		JobID:  job.ID,
		Status: "completed",
		Result: payloads,
	})
	require.NoError(t, err)

	messages := waitForMessages(t, h.conversations, "user-1", 1)
	require.Len(t, messages[0].Products, 5)
	for i, card := range messages[0].Products {
		assert.Equal(t, kept[i], card.ProductID, "candidate order must be preserved")
	}

	// The follow-up detail job carries the survivors' page URLs
	var detail *interfaces.ScheduleRequest
	require.Eventually(t, func() bool {
		scheduled := h.scraper.scheduled()
		if len(scheduled) < 2 {
			return false
		}
		detail = scheduled[1]
		return true
	}, 2*time.Second, 10*time.Millisecond)

	var urls []string
	require.NoError(t, json.Unmarshal([]byte(detail.URL), &urls))
	require.Len(t, urls, 5)
	assert.Equal(t, "https://www.amazon.com/dp/B000000010", urls[0])
}

func TestSearchReconciliationNoRelevantResults(t *testing.T) {
	h := newTestHarness(t)
	h.completion.responses = []string{`{"products": [], "message": "nothing relevant"}`}

	job, err := h.service.CreateScrapeJob(context.Background(), "user-1", string(models.ActionSearchAmazon), "quantum toaster", "https://www.amazon.com/s?k=quantum+toaster")
	require.NoError(t, err)

	err = h.service.HandleCallback(context.Background(), &models.JobUpdate{
		JobID:  job.ID,
		Status: "completed",
		Result: []models.ProductPayload{payload("B000000020")},
	})
	require.NoError(t, err)

	messages := waitForMessages(t, h.conversations, "user-1", 1)
	assert.Equal(t, msgSearchEmpty, messages[0].Content)
	assert.Len(t, h.scraper.scheduled(), 1, "no detail job without survivors")
}

func TestSearchValidationRetriesThenGivesUp(t *testing.T) {
	h := newTestHarness(t)
	h.completion.responses = []string{"not json at all", "still not { json"}

	job, err := h.service.CreateScrapeJob(context.Background(), "user-1", string(models.ActionSearchAmazon), "earbuds", "https://www.amazon.com/s?k=earbuds")
	require.NoError(t, err)

	err = h.service.HandleCallback(context.Background(), &models.JobUpdate{
		JobID:  job.ID,
		Status: "completed",
		Result: []models.ProductPayload{payload("B000000021")},
	})
	require.NoError(t, err)

	messages := waitForMessages(t, h.conversations, "user-1", 1)
	assert.Equal(t, msgSearchFailed, messages[0].Content)
	assert.Equal(t, 2, h.completion.calls)
}

func TestBasicDetailsIsolatesFailingPayloads(t *testing.T) {
	h := newTestHarness(t)
	h.products.createErr["B000000031"] = fmt.Errorf("storage exploded")

	job, err := h.service.CreateScrapeJob(context.Background(), "user-1", string(models.ActionBasicGetProductDetails), "earbuds", `["https://www.amazon.com/dp/B000000030"]`)
	require.NoError(t, err)

	err = h.service.HandleCallback(context.Background(), &models.JobUpdate{
		JobID:  job.ID,
		Status: "completed",
		Result: []models.ProductPayload{
			payload("B000000030"),
			payload("B000000031"),
			payload("B000000032"),
		},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(h.products.createdIDs()) == 2 && h.storage.count() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"B000000030", "B000000032"}, h.products.createdIDs())
	assert.Empty(t, h.conversations.messages("user-1"), "background detail jobs stay silent")
}

func TestSweeperDeletesOnlyStalePendingJobs(t *testing.T) {
	h := newTestHarness(t)

	stale := models.NewJob("user-1", models.ActionLink, "", "https://www.amazon.com/dp/B000000040")
	stale.StartTime = time.Now().Add(-time.Hour)
	require.NoError(t, h.storage.SaveJob(context.Background(), stale))

	fresh := models.NewJob("user-1", models.ActionLink, "", "https://www.amazon.com/dp/B000000041")
	require.NoError(t, h.storage.SaveJob(context.Background(), fresh))

	sweeper := NewSweeper(h.storage, 30*time.Minute, common.GetLogger())
	sweeper.RunNow()

	require.Eventually(t, func() bool { return h.storage.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	remaining, err := h.storage.GetJob(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.NotNil(t, remaining)
}
