package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/merx/internal/models"
)

// ConversationStorage persists per-user conversations
type ConversationStorage interface {
	// SaveConversation upserts a conversation keyed by user id
	SaveConversation(ctx context.Context, conversation *models.Conversation) error

	// GetConversation returns the conversation for a user, or nil when the
	// user has none yet (absence is a valid outcome, not an error)
	GetConversation(ctx context.Context, userID string) (*models.Conversation, error)

	// DeleteConversation removes a user's conversation
	DeleteConversation(ctx context.Context, userID string) error
}

// ProductListOptions filters product listings
type ProductListOptions struct {
	JobID  string
	Domain string
	Limit  int
}

// ProductStorage persists the resolved product catalog and answers vector
// nearest-neighbor queries over the stored embeddings
type ProductStorage interface {
	// CreateProduct stores a new product. Creating a product whose external
	// id already exists is an error and must not mutate the stored product.
	CreateProduct(ctx context.Context, product *models.Product) error

	// GetProduct returns a product by external id, or nil when absent
	GetProduct(ctx context.Context, productID string) (*models.Product, error)

	// UpdateProduct replaces an existing product in place
	UpdateProduct(ctx context.Context, product *models.Product) error

	// ListProducts returns products matching the options
	ListProducts(ctx context.Context, opts *ProductListOptions) ([]*models.Product, error)

	// DeleteProduct removes a product by external id
	DeleteProduct(ctx context.Context, productID string) error

	// FindNearest returns up to limit products ordered by descending cosine
	// similarity to the query embedding. Products without an embedding are
	// skipped.
	FindNearest(ctx context.Context, embedding []float32, limit int) ([]*models.ProductMatch, error)
}

// ProductErrorStorage persists the append-only validation audit trail
type ProductErrorStorage interface {
	SaveProductError(ctx context.Context, productError *models.ProductError) error
	ListProductErrors(ctx context.Context, jobID string) ([]*models.ProductError, error)
}

// JobStorage persists scrape jobs
type JobStorage interface {
	// SaveJob upserts a job keyed by job id
	SaveJob(ctx context.Context, job *models.Job) error

	// GetJob returns a job by id, or nil when absent
	GetJob(ctx context.Context, jobID string) (*models.Job, error)

	// ListJobs returns jobs for a user, or all jobs when userID is empty
	ListJobs(ctx context.Context, userID string) ([]*models.Job, error)

	// ListPendingOlderThan returns pending jobs started before the cutoff
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*models.Job, error)

	// DeleteJob removes a job by id. Deleting an absent job is a no-op.
	DeleteJob(ctx context.Context, jobID string) error
}

// StorageManager provides access to all storage implementations
type StorageManager interface {
	Conversations() ConversationStorage
	Products() ProductStorage
	ProductErrors() ProductErrorStorage
	Jobs() JobStorage
	Close() error
}
