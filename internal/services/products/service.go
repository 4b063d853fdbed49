// -----------------------------------------------------------------------
// Product Service - Catalog validation, enrichment and resolution
// -----------------------------------------------------------------------

package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/merx/internal/interfaces"
	"github.com/ternarybob/merx/internal/models"
)

// Service wraps product persistence with validation, embedding enrichment
// and reference resolution. Implements interfaces.ProductService.
type Service struct {
	storage    interfaces.ProductStorage
	errStorage interfaces.ProductErrorStorage
	completion interfaces.CompletionService
	validate   *validator.Validate
	logger     arbor.ILogger
}

// NewService creates a new product service
func NewService(
	storage interfaces.ProductStorage,
	errStorage interfaces.ProductErrorStorage,
	completion interfaces.CompletionService,
	logger arbor.ILogger,
) *Service {
	return &Service{
		storage:    storage,
		errStorage: errStorage,
		completion: completion,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Resolve locates a product by explicit ID, falling back to an embedding
// similarity lookup on the product name. Returns nil when nothing plausible
// is found.
func (s *Service) Resolve(ctx context.Context, productID, productName string) (*models.Product, error) {
	if productID != "" {
		product, err := s.storage.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		if product != nil {
			return product, nil
		}
	}

	if strings.TrimSpace(productName) == "" {
		return nil, nil
	}

	embedding, err := s.completion.Embed(ctx, productName)
	if err != nil {
		return nil, fmt.Errorf("failed to embed product name: %w", err)
	}

	matches, err := s.storage.FindNearest(ctx, embedding, 1)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0].Product, nil
}

// Validate applies the catalog acceptance rules and returns human readable
// violations. An empty slice means the product is valid.
func (s *Service) Validate(product *models.Product) []string {
	err := s.validate.Struct(product)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		messages = append(messages, describeViolation(fieldErr))
	}
	return messages
}

// describeViolation maps a validator field error to the wording stored in
// the audit trail.
func describeViolation(fieldErr validator.FieldError) string {
	switch fieldErr.Field() {
	case "ProductID":
		return "Product ID is required"
	case "Domain":
		return "Domain is required"
	case "Title":
		return "Title is required"
	case "ImageURL":
		return "Image URL is required"
	case "Price":
		return "Price must be greater than 0"
	case "Rating":
		return "Rating must be between 0 and 5"
	case "Specs":
		return "Specs must not be empty"
	case "Features":
		return "Features must not be empty"
	default:
		return fmt.Sprintf("%s failed validation rule %s", fieldErr.Field(), fieldErr.Tag())
	}
}

// Create stores a new product. Creating an already-known ID is not an error;
// the stored product is returned unchanged so repeated scrapes of the same
// item stay idempotent.
func (s *Service) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product == nil || product.ProductID == "" {
		return nil, fmt.Errorf("product ID is required")
	}

	existing, err := s.storage.GetProduct(ctx, product.ProductID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Debug().Str("product_id", product.ProductID).Msg("Product already exists, keeping stored version")
		return existing, nil
	}

	if err := s.storage.CreateProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// RecordError persists a validation failure for later inspection
func (s *Service) RecordError(ctx context.Context, productErr *models.ProductError) error {
	if productErr == nil {
		return fmt.Errorf("product error is required")
	}

	s.logger.Warn().
		Str("product_id", productErr.ProductID).
		Str("job_id", productErr.JobID).
		Strs("errors", productErr.Errors).
		Msg("Recording product validation errors")

	return s.errStorage.SaveProductError(ctx, productErr)
}

// Enrich generates the embedding text and vector for a product and saves
// the result. The embedding text is a model-written summary optimized for
// similarity search rather than raw field concatenation.
func (s *Service) Enrich(ctx context.Context, product *models.Product) error {
	if product == nil {
		return fmt.Errorf("product is required")
	}

	embeddingText, err := s.generateEmbeddingText(ctx, product)
	if err != nil {
		return fmt.Errorf("failed to generate embedding text: %w", err)
	}

	embedding, err := s.completion.Embed(ctx, embeddingText)
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	product.EmbeddingText = embeddingText
	product.Embedding = embedding

	return s.storage.UpdateProduct(ctx, product)
}

// Regenerate rebuilds the generated review and embedding for a product
func (s *Service) Regenerate(ctx context.Context, productID string) (*models.Product, error) {
	product, err := s.storage.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("product not found: %s", productID)
	}

	review, err := s.completion.Complete(ctx, []interfaces.Message{
		{Role: "system", Content: reviewPrompt},
		{Role: "user", Content: productSummary(product)},
	}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to generate review: %w", err)
	}
	product.GeneratedReview = strings.TrimSpace(review)

	if err := s.Enrich(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// Ask answers a free-text question about a stored product
func (s *Service) Ask(ctx context.Context, productID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question is required")
	}

	product, err := s.storage.GetProduct(ctx, productID)
	if err != nil {
		return "", err
	}
	if product == nil {
		return "", fmt.Errorf("product not found: %s", productID)
	}

	answer, err := s.completion.Complete(ctx, []interfaces.Message{
		{Role: "system", Content: questionPrompt + "\n\n" + productSummary(product)},
		{Role: "user", Content: question},
	}, "")
	if err != nil {
		return "", fmt.Errorf("failed to answer question: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// generateEmbeddingText asks the model for a compact searchable description
func (s *Service) generateEmbeddingText(ctx context.Context, product *models.Product) (string, error) {
	text, err := s.completion.Complete(ctx, []interfaces.Message{
		{Role: "system", Content: embeddingTextPrompt},
		{Role: "user", Content: productSummary(product)},
	}, "")
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty embedding text")
	}
	return text, nil
}

// productSummary flattens the searchable product fields into prompt input.
// Embeddings, raw reviews and Q&A are deliberately excluded.
func productSummary(product *models.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", product.Title)
	fmt.Fprintf(&b, "Domain: %s\n", product.Domain)
	fmt.Fprintf(&b, "Price: %.2f\n", product.Price)
	fmt.Fprintf(&b, "Rating: %.1f\n", product.Rating)
	if product.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", product.Description)
	}
	if len(product.Features) > 0 {
		fmt.Fprintf(&b, "Features: %s\n", strings.Join(product.Features, "; "))
	}
	if len(product.Specs) > 0 {
		b.WriteString("Specs:\n")
		for k, v := range product.Specs {
			fmt.Fprintf(&b, "  %s: %s\n", k, v)
		}
	}
	return b.String()
}

const embeddingTextPrompt = `You write compact product descriptions used for semantic similarity search.
Given the product details, produce a single dense paragraph covering what the product is, its key attributes, category and typical use cases.
Do not include prices, ratings, marketing fluff or any formatting. Plain text only.`

const reviewPrompt = `You are a product reviewer. Given the product details, write a short balanced review (3-4 sentences) covering strengths, weaknesses and who the product suits.
Plain text only, no headings or bullet points.`

const questionPrompt = `You are a shopping assistant. Answer the user's question using only the product details below.
If the details do not contain the answer, say so briefly. Plain text only.`
