package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/merx/internal/interfaces"
	"github.com/ternarybob/merx/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ConversationStorage implements the ConversationStorage interface for Badger
type ConversationStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewConversationStorage creates a new ConversationStorage instance
func NewConversationStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ConversationStorage {
	return &ConversationStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ConversationStorage) SaveConversation(ctx context.Context, conversation *models.Conversation) error {
	if conversation == nil || conversation.UserID == "" {
		return fmt.Errorf("conversation user ID is required")
	}

	if err := s.db.Store().Upsert(conversation.UserID, conversation); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

func (s *ConversationStorage) GetConversation(ctx context.Context, userID string) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := s.db.Store().Get(userID, &conversation); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conversation, nil
}

func (s *ConversationStorage) DeleteConversation(ctx context.Context, userID string) error {
	if err := s.db.Store().Delete(userID, &models.Conversation{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}
