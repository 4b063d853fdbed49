package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/merx/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	tmpDir := t.TempDir()

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store, logger: arbor.NewLogger()}
}

func TestConversationRoundTrip(t *testing.T) {
	db := newTestDB(t)
	storage := NewConversationStorage(db, arbor.NewLogger())
	ctx := context.Background()

	// Absent conversation is nil, not an error
	conv, err := storage.GetConversation(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, conv)

	saved := models.NewConversation("user-1")
	saved.Append(models.Message{ID: "m1", Role: models.RoleUser, Content: "hello"})
	require.NoError(t, storage.SaveConversation(ctx, saved))

	loaded, err := storage.GetConversation(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Messages, 1)
	assert.Equal(t, "hello", loaded.Messages[0].Content)

	require.NoError(t, storage.DeleteConversation(ctx, "user-1"))
	conv, err = storage.GetConversation(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, conv)

	// Deleting again is a no-op
	require.NoError(t, storage.DeleteConversation(ctx, "user-1"))
}

func TestCreateProductRejectsDuplicates(t *testing.T) {
	db := newTestDB(t)
	storage := NewProductStorage(db, arbor.NewLogger())
	ctx := context.Background()

	product := &models.Product{
		ProductID: "B0ABCDEFGH",
		Domain:    "amazon.com",
		Title:     "Lenovo IdeaPad",
		Price:     499.99,
	}
	require.NoError(t, storage.CreateProduct(ctx, product))

	// Second create with the same ID fails and leaves the original intact
	dup := &models.Product{
		ProductID: "B0ABCDEFGH",
		Domain:    "amazon.com",
		Title:     "Different Title",
		Price:     1.00,
	}
	err := storage.CreateProduct(ctx, dup)
	require.Error(t, err)

	stored, err := storage.GetProduct(ctx, "B0ABCDEFGH")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Lenovo IdeaPad", stored.Title)
	assert.Equal(t, 499.99, stored.Price)
}

func TestGetProductAbsent(t *testing.T) {
	db := newTestDB(t)
	storage := NewProductStorage(db, arbor.NewLogger())

	product, err := storage.GetProduct(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, product)
}

func TestFindNearestOrdering(t *testing.T) {
	db := newTestDB(t)
	storage := NewProductStorage(db, arbor.NewLogger())
	ctx := context.Background()

	// Three products at known angles to the query vector, plus one without
	// an embedding that must be skipped
	products := []*models.Product{
		{ProductID: "exact", Title: "Exact", Embedding: []float32{1, 0, 0}},
		{ProductID: "close", Title: "Close", Embedding: []float32{0.9, 0.1, 0}},
		{ProductID: "far", Title: "Far", Embedding: []float32{0, 1, 0}},
		{ProductID: "no-embedding", Title: "None"},
	}
	for _, p := range products {
		require.NoError(t, storage.CreateProduct(ctx, p))
	}

	matches, err := storage.FindNearest(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "exact", matches[0].Product.ProductID)
	assert.Equal(t, "close", matches[1].Product.ProductID)
	assert.Equal(t, "far", matches[2].Product.ProductID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)

	// Limit truncates after ordering
	matches, err = storage.FindNearest(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "exact", matches[0].Product.ProductID)
}

func TestJobLifecycle(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := models.NewJob("user-1", models.ActionSearchAmazon, "gaming laptop", "https://www.amazon.com/s?k=gaming+laptop")
	require.NoError(t, storage.SaveJob(ctx, job))

	loaded, err := storage.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, models.JobStatusPending, loaded.Status)
	assert.Equal(t, "user-1", loaded.UserID)

	// Absent job is nil, not an error
	missing, err := storage.GetJob(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, storage.DeleteJob(ctx, job.ID))
	loaded, err = storage.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Double delete is a no-op
	require.NoError(t, storage.DeleteJob(ctx, job.ID))
}

func TestListPendingOlderThan(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	old := models.NewJob("user-1", models.ActionLink, "", "https://www.amazon.com/dp/B0ABCDEFGH")
	old.StartTime = time.Now().Add(-2 * time.Hour)
	require.NoError(t, storage.SaveJob(ctx, old))

	fresh := models.NewJob("user-1", models.ActionLink, "", "https://www.amazon.com/dp/B0ZYXWVUTS")
	require.NoError(t, storage.SaveJob(ctx, fresh))

	done := models.NewJob("user-2", models.ActionLink, "", "https://www.amazon.com/dp/B011111111")
	done.StartTime = time.Now().Add(-2 * time.Hour)
	done.Status = models.JobStatusCompleted
	require.NoError(t, storage.SaveJob(ctx, done))

	stale, err := storage.ListPendingOlderThan(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)
}

func TestProductErrorAudit(t *testing.T) {
	db := newTestDB(t)
	storage := NewProductErrorStorage(db, arbor.NewLogger())
	ctx := context.Background()

	first := models.NewProductError("B0ABCDEFGH", "job-1", "user-1", []string{"Price must be greater than 0"})
	second := models.NewProductError("B0ZYXWVUTS", "job-2", "user-1", []string{"Title is required", "Image URL is required"})
	require.NoError(t, storage.SaveProductError(ctx, first))
	require.NoError(t, storage.SaveProductError(ctx, second))

	all, err := storage.ListProductErrors(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byJob, err := storage.ListProductErrors(ctx, "job-2")
	require.NoError(t, err)
	require.Len(t, byJob, 1)
	assert.Equal(t, "B0ZYXWVUTS", byJob[0].ProductID)
	assert.Len(t, byJob[0].Errors, 2)
}
