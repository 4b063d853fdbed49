// -----------------------------------------------------------------------
// Chat Service - Conversational pipeline from user text to assistant reply
// -----------------------------------------------------------------------

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/merx/internal/common"
	"github.com/ternarybob/merx/internal/interfaces"
	"github.com/ternarybob/merx/internal/models"
	"github.com/ternarybob/merx/internal/services/dispatcher"
)

// Service runs the full message pipeline: classify intent against history,
// execute the action and persist both sides of the exchange. The reply is
// returned to the caller synchronously; only async job results travel over
// the event bus. Implements interfaces.ChatService.
type Service struct {
	conversations interfaces.ConversationService
	dispatcher    interfaces.IntentDispatcher
	actions       interfaces.ActionService
	logger        arbor.ILogger
}

// NewService creates a new chat service
func NewService(
	conversations interfaces.ConversationService,
	intentDispatcher interfaces.IntentDispatcher,
	actions interfaces.ActionService,
	logger arbor.ILogger,
) *Service {
	return &Service{
		conversations: conversations,
		dispatcher:    intentDispatcher,
		actions:       actions,
		logger:        logger,
	}
}

// ProcessMessage handles one inbound user message and returns the assistant
// reply that was appended to the conversation. A classification that never
// produces parseable output degrades to an apology instead of an error so
// the user always gets an answer.
func (s *Service) ProcessMessage(ctx context.Context, userID, text string) (*models.Message, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("message text is required")
	}

	conversation, err := s.conversations.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	userMessage := &models.Message{
		ID:        common.NewMessageID(),
		Role:      models.RoleUser,
		Timestamp: time.Now(),
		Content:   text,
	}

	var reply *models.Message
	descriptor, err := s.dispatcher.Classify(ctx, conversation, text)
	switch {
	case errors.Is(err, dispatcher.ErrParseFailure):
		s.logger.Warn().Str("user_id", userID).Msg("Intent classification unparseable, degrading to apology")
		reply = s.apology()
	case err != nil:
		return nil, fmt.Errorf("failed to classify message: %w", err)
	default:
		reply, err = s.actions.Handle(ctx, userID, conversation, descriptor)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("user_id", userID).
				Str("action", string(descriptor.Action)).
				Msg("Action handler failed")
			reply = s.apology()
		}
	}

	if _, err := s.conversations.AppendMessages(ctx, userID, userMessage, reply); err != nil {
		return nil, fmt.Errorf("failed to persist exchange: %w", err)
	}

	return reply, nil
}

func (s *Service) apology() *models.Message {
	return &models.Message{
		ID:        common.NewMessageID(),
		Role:      models.RoleAssistant,
		Timestamp: time.Now(),
		Content:   msgProcessingFailed,
	}
}

const msgProcessingFailed = "Sorry, I couldn't process that message. Please try rephrasing it."
