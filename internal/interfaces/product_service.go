package interfaces

import (
	"context"

	"github.com/ternarybob/merx/internal/models"
)

// ProductService wraps product persistence with validation, enrichment and
// reference resolution.
type ProductService interface {
	// Resolve locates a product by explicit ID, falling back to an embedding
	// similarity lookup on the product name. Returns nil when nothing
	// plausible is found.
	Resolve(ctx context.Context, productID, productName string) (*models.Product, error)

	// Validate applies the catalog acceptance rules and returns human
	// readable violations. An empty slice means the product is valid.
	Validate(product *models.Product) []string

	// Create stores a new product. Creating an existing ID is a no-op and
	// returns the stored product unchanged.
	Create(ctx context.Context, product *models.Product) (*models.Product, error)

	// RecordError persists a validation failure for later inspection
	RecordError(ctx context.Context, productErr *models.ProductError) error

	// Enrich generates the embedding text and vector for a product and
	// saves the result.
	Enrich(ctx context.Context, product *models.Product) error

	// Regenerate rebuilds the generated review and embedding for a product
	Regenerate(ctx context.Context, productID string) (*models.Product, error)

	// Ask answers a free-text question about a stored product
	Ask(ctx context.Context, productID, question string) (string, error)
}
