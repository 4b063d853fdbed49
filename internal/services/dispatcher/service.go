// -----------------------------------------------------------------------
// Intent Dispatcher - LLM classification of user messages into actions
// -----------------------------------------------------------------------

package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/merx/internal/interfaces"
	"github.com/ternarybob/merx/internal/models"
	"github.com/ternarybob/merx/internal/services/llm"
)

// historyWindow limits how much conversation context is sent to the
// classifier.
const historyWindow = 10

// maxClassifyAttempts bounds the parse-retry loop: one initial attempt plus
// one corrective re-prompt.
const maxClassifyAttempts = 2

// ErrParseFailure indicates the model never produced a parseable action
// descriptor within the retry budget. Callers fall back to an apology reply.
var ErrParseFailure = errors.New("classification response could not be parsed")

// Service classifies user messages against conversation history into action
// descriptors. Implements interfaces.IntentDispatcher.
type Service struct {
	completion interfaces.CompletionService
	model      string
	logger     arbor.ILogger
}

// NewService creates a new intent dispatcher. model selects the classifier
// model; empty uses the provider default.
func NewService(completion interfaces.CompletionService, model string, logger arbor.ILogger) *Service {
	return &Service{
		completion: completion,
		model:      model,
		logger:     logger,
	}
}

// Classify asks the model for an action descriptor for the user's message.
// A malformed response gets one corrective re-prompt that includes the bad
// output; a second failure returns ErrParseFailure.
func (s *Service) Classify(ctx context.Context, conversation *models.Conversation, text string) (*models.ActionDescriptor, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("message text is required")
	}

	messages := s.buildMessages(conversation, text)

	var lastResponse string
	for attempt := 1; attempt <= maxClassifyAttempts; attempt++ {
		if attempt > 1 {
			// Show the model its own bad output alongside the correction
			messages = append(messages,
				interfaces.Message{Role: "assistant", Content: lastResponse},
				interfaces.Message{Role: "user", Content: correctionPrompt},
			)
		}

		response, err := s.completion.Complete(ctx, messages, s.model)
		if err != nil {
			return nil, fmt.Errorf("classification failed: %w", err)
		}
		lastResponse = response

		var descriptor models.ActionDescriptor
		if err := llm.Decode(response, &descriptor); err != nil {
			s.logger.Warn().
				Int("attempt", attempt).
				Str("response", truncate(response, 200)).
				Msg("Classifier returned unparseable output")
			continue
		}

		if descriptor.Action == "" {
			descriptor.Action = models.ActionNone
		}

		s.logger.Debug().
			Str("action", string(descriptor.Action)).
			Str("user_id", conversationUser(conversation)).
			Msg("Message classified")

		return &descriptor, nil
	}

	return nil, ErrParseFailure
}

// buildMessages assembles the classifier prompt: system instruction, a
// role-tagged window of recent history, then the new message.
func (s *Service) buildMessages(conversation *models.Conversation, text string) []interfaces.Message {
	messages := []interfaces.Message{
		{Role: "system", Content: classifierPrompt},
	}

	if conversation != nil {
		for _, msg := range conversation.Recent(historyWindow) {
			content := msg.Content
			// Surface product ids so the model can reference them
			for _, card := range msg.Products {
				content += fmt.Sprintf(" [%s: %s]", card.ProductID, card.Title)
			}
			messages = append(messages, interfaces.Message{
				Role:    string(msg.Role),
				Content: content,
			})
		}
	}

	messages = append(messages, interfaces.Message{Role: "user", Content: text})
	return messages
}

func conversationUser(conversation *models.Conversation) string {
	if conversation == nil {
		return ""
	}
	return conversation.UserID
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
