package interfaces

import (
	"context"

	"github.com/ternarybob/merx/internal/models"
)

// ChatService is the top-level conversational pipeline: classify the user's
// message, run the resolved action, persist the exchange and notify listeners.
type ChatService interface {
	// ProcessMessage handles one inbound user message and returns the
	// assistant reply that was appended to the conversation.
	ProcessMessage(ctx context.Context, userID, text string) (*models.Message, error)
}

// IntentDispatcher classifies a user message against the conversation history
// into an action descriptor.
type IntentDispatcher interface {
	Classify(ctx context.Context, conversation *models.Conversation, text string) (*models.ActionDescriptor, error)
}

// ActionService executes a classified action and produces the assistant reply.
type ActionService interface {
	Handle(ctx context.Context, userID string, conversation *models.Conversation, descriptor *models.ActionDescriptor) (*models.Message, error)
}
