package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a resolved catalog entry keyed by its external product id
// (e.g. an ASIN). Created once per external id and updated in place as
// embeddings, reviews and prices change. Validation tags drive the business
// rules checked after creation; rule failures are recorded as ProductError
// audit entries, they do not block the product.
type Product struct {
	ProductID       string              `json:"product_id" badgerhold:"key" validate:"required"`
	JobID           string              `json:"job_id,omitempty"`
	UserID          string              `json:"user_id,omitempty"`
	Domain          string              `json:"domain" validate:"required"`
	Title           string              `json:"title" validate:"required"`
	Description     string              `json:"description"`
	Price           float64             `json:"price" validate:"gt=0"`
	ImageURL        string              `json:"image_url" validate:"required"`
	Specs           map[string]string   `json:"specs" validate:"min=1"`
	Features        []string            `json:"features" validate:"min=1"`
	Reviews         []string            `json:"reviews,omitempty"`
	Rating          float64             `json:"rating" validate:"gte=0,lte=5"`
	NumberOfReviews string              `json:"number_of_reviews,omitempty"`
	Embedding       []float32           `json:"embedding,omitempty"`
	EmbeddingText   string              `json:"embedding_text,omitempty"`
	SimilarProducts []ProductIdentifier `json:"similar_products,omitempty"`
	Variants        map[string][]string `json:"variants,omitempty"`
	QA              []string            `json:"qa,omitempty"`
	GeneratedReview string              `json:"generated_review,omitempty"`
	AffiliateURL    string              `json:"affiliate_url,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// Card returns the display summary attached to chat messages
func (p *Product) Card() ProductCard {
	return ProductCard{
		ProductID:    p.ProductID,
		Domain:       p.Domain,
		Title:        p.Title,
		Description:  p.Description,
		Price:        p.Price,
		ImageURL:     p.ImageURL,
		Rating:       p.Rating,
		AffiliateURL: p.AffiliateURL,
	}
}

// NewProductFromPayload builds a product from a raw scrape payload
func NewProductFromPayload(payload *ProductPayload, userID, jobID string) *Product {
	now := time.Now()
	return &Product{
		ProductID:       payload.ProductID,
		JobID:           jobID,
		UserID:          userID,
		Domain:          payload.Domain,
		Title:           payload.Title,
		Description:     payload.Description,
		Price:           payload.Price,
		ImageURL:        payload.ImageURL,
		Specs:           payload.Specs,
		Features:        payload.Features,
		Reviews:         payload.Reviews,
		Rating:          payload.Rating,
		NumberOfReviews: payload.NumberOfReviews,
		Variants:        payload.Variants,
		QA:              payload.QA,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ProductMatch pairs a product with its vector similarity score
type ProductMatch struct {
	Product *Product
	Score   float64
}

// ProductError is an append-only audit record for products that failed one
// or more validation rules during reconciliation. Diagnostic, not
// authoritative.
type ProductError struct {
	ID        string    `json:"id" badgerhold:"key"`
	ProductID string    `json:"product_id"`
	JobID     string    `json:"job_id"`
	UserID    string    `json:"user_id,omitempty"`
	Errors    []string  `json:"errors"`
	CreatedAt time.Time `json:"created_at"`
}

// NewProductError creates an audit record for validation failures
func NewProductError(productID, jobID, userID string, errs []string) *ProductError {
	return &ProductError{
		ID:        uuid.New().String(),
		ProductID: productID,
		JobID:     jobID,
		UserID:    userID,
		Errors:    errs,
		CreatedAt: time.Now(),
	}
}
