// -----------------------------------------------------------------------
// Conversation Handler - History retrieval and reset
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/merx/internal/interfaces"
)

// ConversationHandler exposes the authenticated user's conversation history
type ConversationHandler struct {
	conversations interfaces.ConversationService
	logger        arbor.ILogger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversations interfaces.ConversationService, logger arbor.ILogger) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		logger:        logger,
	}
}

// ConversationHandler handles GET and DELETE /api/conversation
func (h *ConversationHandler) ConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	switch r.Method {
	case http.MethodGet:
		conversation, err := h.conversations.GetOrCreate(r.Context(), userID)
		if err != nil {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to load conversation")
			WriteError(w, http.StatusInternalServerError, "failed to load conversation")
			return
		}
		WriteJSON(w, http.StatusOK, conversation)

	case http.MethodDelete:
		if err := h.conversations.Delete(r.Context(), userID); err != nil {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to delete conversation")
			WriteError(w, http.StatusInternalServerError, "failed to delete conversation")
			return
		}
		WriteSuccess(w, "Conversation deleted")

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ByUserHandler handles GET /api/conversations/{user_id}. Tokens are bound
// to a single identity, so requesting another user's history is rejected.
func (h *ConversationHandler) ByUserHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	userID := UserIDFromContext(r.Context())
	if userID == "" {
		WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	pathUser, sub := splitPathID(r.URL.Path, "/api/conversations")
	if pathUser == "" || sub != "" {
		http.NotFound(w, r)
		return
	}
	if pathUser != userID {
		WriteError(w, http.StatusForbidden, "token does not match requested user")
		return
	}

	conversation, err := h.conversations.GetOrCreate(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to load conversation")
		WriteError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	WriteJSON(w, http.StatusOK, conversation)
}
