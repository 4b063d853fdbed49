package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/merx/internal/interfaces"
	"github.com/ternarybob/merx/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ProductErrorStorage implements the ProductErrorStorage interface for Badger
type ProductErrorStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewProductErrorStorage creates a new ProductErrorStorage instance
func NewProductErrorStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ProductErrorStorage {
	return &ProductErrorStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ProductErrorStorage) SaveProductError(ctx context.Context, productError *models.ProductError) error {
	if productError == nil || productError.ID == "" {
		return fmt.Errorf("product error ID is required")
	}

	if err := s.db.Store().Upsert(productError.ID, productError); err != nil {
		return fmt.Errorf("failed to save product error: %w", err)
	}
	return nil
}

func (s *ProductErrorStorage) ListProductErrors(ctx context.Context, jobID string) ([]*models.ProductError, error) {
	query := badgerhold.Where("ID").Ne("")
	if jobID != "" {
		query = badgerhold.Where("JobID").Eq(jobID)
	}
	query = query.SortBy("CreatedAt").Reverse()

	var errors []models.ProductError
	if err := s.db.Store().Find(&errors, query); err != nil {
		return nil, fmt.Errorf("failed to list product errors: %w", err)
	}

	result := make([]*models.ProductError, len(errors))
	for i := range errors {
		result[i] = &errors[i]
	}
	return result, nil
}
