package interfaces

import (
	"context"

	"github.com/ternarybob/merx/internal/models"
)

// SearchResult holds the validated candidates from a similarity search plus
// the validator's one-line message for the user. An empty candidate list is
// a valid, expected outcome.
type SearchResult struct {
	Products []*models.Product
	Message  string
}

// SearchService runs the two-stage similarity search protocol: a vector
// nearest-neighbor query followed by an LLM relevance validation pass.
type SearchService interface {
	// FindSimilar returns only candidates whose id survived validation,
	// preserving first-stage order. The conversation provides recent context
	// for the validation prompt.
	FindSimilar(ctx context.Context, conversation *models.Conversation, userQuery string, embedding []float32, limit int) (*SearchResult, error)
}
