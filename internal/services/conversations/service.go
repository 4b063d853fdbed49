// -----------------------------------------------------------------------
// Conversation Service - Serialized per-user history mutation
// -----------------------------------------------------------------------

package conversations

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/merx/internal/interfaces"
	"github.com/ternarybob/merx/internal/models"
)

// Service owns all conversation mutation. Appends for the same user are
// serialized through a per-user mutex so concurrent read-modify-write cycles
// cannot drop each other's messages. Chat turns and background reconcilers
// both append through here.
type Service struct {
	storage interfaces.ConversationStorage
	logger  arbor.ILogger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a new conversation service
func NewService(storage interfaces.ConversationStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex for a user, creating it on first use. Locks are
// never removed; the user population is small and long-lived.
func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// GetOrCreate returns the user's conversation, creating an empty one on
// first access.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (*models.Conversation, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	conversation, err := s.storage.GetConversation(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conversation != nil {
		return conversation, nil
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	// Re-check under the lock so concurrent first access creates only one
	conversation, err = s.storage.GetConversation(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conversation != nil {
		return conversation, nil
	}

	conversation = models.NewConversation(userID)
	if err := s.storage.SaveConversation(ctx, conversation); err != nil {
		return nil, err
	}

	s.logger.Debug().Str("user_id", userID).Msg("Created conversation")
	return conversation, nil
}

// AppendMessages fetches the latest conversation state under the user lock,
// appends the messages in order and saves. Oldest messages are evicted past
// the cap; newly appended messages always survive the append that added them.
func (s *Service) AppendMessages(ctx context.Context, userID string, messages ...*models.Message) (*models.Conversation, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if len(messages) == 0 {
		return s.GetOrCreate(ctx, userID)
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	conversation, err := s.storage.GetConversation(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		conversation = models.NewConversation(userID)
	}

	for _, msg := range messages {
		if msg == nil {
			continue
		}
		conversation.Append(*msg)
	}

	if err := s.storage.SaveConversation(ctx, conversation); err != nil {
		return nil, err
	}

	return conversation, nil
}

// Delete removes the user's conversation history
func (s *Service) Delete(ctx context.Context, userID string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	return s.storage.DeleteConversation(ctx, userID)
}
