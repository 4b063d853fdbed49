package badger

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/merx/internal/interfaces"
	"github.com/ternarybob/merx/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ProductStorage implements the ProductStorage interface for Badger
type ProductStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewProductStorage creates a new ProductStorage instance
func NewProductStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ProductStorage {
	return &ProductStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ProductStorage) CreateProduct(ctx context.Context, product *models.Product) error {
	if product == nil || product.ProductID == "" {
		return fmt.Errorf("product ID is required")
	}

	if err := s.db.Store().Insert(product.ProductID, product); err != nil {
		if err == badgerhold.ErrKeyExists {
			return fmt.Errorf("product already exists: %s", product.ProductID)
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (s *ProductStorage) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	var product models.Product
	if err := s.db.Store().Get(productID, &product); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &product, nil
}

func (s *ProductStorage) UpdateProduct(ctx context.Context, product *models.Product) error {
	if product == nil || product.ProductID == "" {
		return fmt.Errorf("product ID is required")
	}

	if err := s.db.Store().Update(product.ProductID, product); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("product not found: %s", product.ProductID)
		}
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

func (s *ProductStorage) ListProducts(ctx context.Context, opts *interfaces.ProductListOptions) ([]*models.Product, error) {
	query := badgerhold.Where("ProductID").Ne("")

	if opts != nil {
		if opts.JobID != "" {
			query = query.And("JobID").Eq(opts.JobID)
		}
		if opts.Domain != "" {
			query = query.And("Domain").Eq(opts.Domain)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
	}
	query = query.SortBy("CreatedAt").Reverse()

	var products []models.Product
	if err := s.db.Store().Find(&products, query); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	result := make([]*models.Product, len(products))
	for i := range products {
		result[i] = &products[i]
	}
	return result, nil
}

func (s *ProductStorage) DeleteProduct(ctx context.Context, productID string) error {
	if err := s.db.Store().Delete(productID, &models.Product{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("product not found: %s", productID)
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// FindNearest scans stored embeddings and ranks them by cosine similarity.
// The catalog is small enough that a full scan stays cheap; products without
// an embedding are skipped.
func (s *ProductStorage) FindNearest(ctx context.Context, embedding []float32, limit int) ([]*models.ProductMatch, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding is required")
	}
	if limit <= 0 {
		limit = 5
	}

	var products []models.Product
	if err := s.db.Store().Find(&products, badgerhold.Where("ProductID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to scan products: %w", err)
	}

	matches := make([]*models.ProductMatch, 0, len(products))
	for i := range products {
		p := &products[i]
		if len(p.Embedding) == 0 {
			continue
		}
		score, ok := cosineSimilarity(embedding, p.Embedding)
		if !ok {
			continue
		}
		matches = append(matches, &models.ProductMatch{Product: p, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// cosineSimilarity returns the cosine of the angle between two vectors.
// Reports false for mismatched dimensions or zero vectors.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
