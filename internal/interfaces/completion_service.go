package interfaces

import (
	"context"
)

// Message represents a single message in an LLM conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// CompletionService is the stateless gateway to text-completion and
// embedding providers. Concrete providers (Claude, Gemini) are selected from
// the model string and are interchangeable beyond latency and availability.
type CompletionService interface {
	// Complete generates a completion for the conversation. The model string
	// selects the provider; an empty model uses the configured default.
	Complete(ctx context.Context, messages []Message, model string) (string, error)

	// Embed generates an embedding vector for the given text
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases provider clients
	Close() error
}
