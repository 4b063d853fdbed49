// -----------------------------------------------------------------------
// Chat Handler - REST fallback for clients without a websocket
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/merx/internal/interfaces"
)

// ChatHandler exposes the chat pipeline over plain HTTP. The reply is
// returned synchronously; async job results still arrive through the
// websocket or by polling the conversation.
type ChatHandler struct {
	chat   interfaces.ChatService
	jobs   interfaces.JobService
	logger arbor.ILogger
}

// NewChatHandler creates a new REST chat handler
func NewChatHandler(chat interfaces.ChatService, jobs interfaces.JobService, logger arbor.ILogger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		jobs:   jobs,
		logger: logger,
	}
}

type chatRequest struct {
	Text string `json:"text"`
}

type linkRequest struct {
	URL string `json:"url"`
}

// MessageHandler handles POST /api/chat
func (h *ChatHandler) MessageHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	userID := UserIDFromContext(r.Context())
	if userID == "" {
		WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		WriteError(w, http.StatusBadRequest, "text is required")
		return
	}

	message, err := h.chat.ProcessMessage(r.Context(), userID, req.Text)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Chat request failed")
		WriteError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": message,
	})
}

// LinkHandler handles POST /api/chat/link
func (h *ChatHandler) LinkHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	userID := UserIDFromContext(r.Context())
	if userID == "" {
		WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		WriteError(w, http.StatusBadRequest, "url is required")
		return
	}

	message, err := h.jobs.HandleLink(r.Context(), userID, req.URL)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Link request failed")
		WriteError(w, http.StatusInternalServerError, "failed to process link")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": message,
	})
}
