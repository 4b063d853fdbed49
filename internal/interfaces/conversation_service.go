package interfaces

import (
	"context"

	"github.com/ternarybob/merx/internal/models"
)

// ConversationService serializes access to per-user conversation history.
// Concurrent appends for the same user are applied one at a time so both
// messages survive.
type ConversationService interface {
	// GetOrCreate returns the user's conversation, creating an empty one on
	// first access.
	GetOrCreate(ctx context.Context, userID string) (*models.Conversation, error)

	// AppendMessages fetches the latest conversation state, appends the
	// messages in order and saves, evicting oldest entries past the cap.
	AppendMessages(ctx context.Context, userID string, messages ...*models.Message) (*models.Conversation, error)

	// Delete removes the user's conversation history
	Delete(ctx context.Context, userID string) error
}
