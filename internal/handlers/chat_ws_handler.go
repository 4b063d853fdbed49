// -----------------------------------------------------------------------
// Chat WebSocket Handler - Authenticated per-user chat connection
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/merx/internal/interfaces"
	"github.com/ternarybob/merx/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// authDeadline bounds how long an unauthenticated socket may stay open
const authDeadline = 10 * time.Second

// inboundFrame is the envelope for all client -> server frames
type inboundFrame struct {
	Type   string `json:"type"`
	UserID string `json:"user_id,omitempty"`
	Token  string `json:"token,omitempty"`
	Text   string `json:"text,omitempty"`
	URL    string `json:"url,omitempty"`
}

// outboundFrame is the envelope for all server -> client frames
type outboundFrame struct {
	Type    string          `json:"type"`
	UserID  string          `json:"user_id,omitempty"`
	Message *models.Message `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// PushMessageFrame wraps a persisted message in the websocket envelope. Used
// for async delivery of job results outside a request cycle.
func PushMessageFrame(userID string, message *models.Message) interface{} {
	return &outboundFrame{Type: "message", UserID: userID, Message: message}
}

// ChatWSHandler owns the websocket chat endpoint. Each connection must
// authenticate with its first frame before any chat traffic is accepted.
// All writes to a connection, including async job results, go through the
// push service so they serialize on one mutex.
type ChatWSHandler struct {
	auth   interfaces.Authenticator
	chat   interfaces.ChatService
	jobs   interfaces.JobService
	push   interfaces.PushService
	logger arbor.ILogger
}

// NewChatWSHandler creates a new websocket chat handler
func NewChatWSHandler(
	auth interfaces.Authenticator,
	chat interfaces.ChatService,
	jobs interfaces.JobService,
	push interfaces.PushService,
	logger arbor.ILogger,
) *ChatWSHandler {
	return &ChatWSHandler{
		auth:   auth,
		chat:   chat,
		jobs:   jobs,
		push:   push,
		logger: logger,
	}
}

// HandleWebSocket upgrades the connection and runs the session loop
func (h *ChatWSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	userID, ok := h.authenticate(r, conn)
	if !ok {
		conn.Close()
		return
	}

	h.push.Register(userID, conn)
	defer h.push.Unregister(userID, conn)

	h.push.Send(userID, &outboundFrame{Type: "auth_ok", UserID: userID})
	h.logger.Info().Str("user_id", userID).Msg("WebSocket session established")

	h.readLoop(r, userID, conn)
}

// authenticate consumes the first frame, which must be an auth frame. When
// the frame names a user id it must match the identity the token resolves
// to; a mismatch closes the connection.
func (h *ChatWSHandler) authenticate(r *http.Request, conn *websocket.Conn) (string, bool) {
	conn.SetReadDeadline(time.Now().Add(authDeadline))
	defer conn.SetReadDeadline(time.Time{})

	var frame inboundFrame
	if err := conn.ReadJSON(&frame); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to read auth frame")
		return "", false
	}
	if frame.Type != "auth" {
		conn.WriteJSON(&outboundFrame{Type: "error", Error: "first frame must be auth"})
		return "", false
	}

	userID, err := h.auth.Authenticate(r.Context(), frame.Token)
	if err != nil {
		h.logger.Warn().Msg("WebSocket authentication failed")
		conn.WriteJSON(&outboundFrame{Type: "error", Error: "authentication failed"})
		return "", false
	}
	if frame.UserID != "" && frame.UserID != userID {
		h.logger.Warn().
			Str("claimed", frame.UserID).
			Str("resolved", userID).
			Msg("WebSocket identity mismatch")
		conn.WriteJSON(&outboundFrame{Type: "error", Error: "identity mismatch"})
		return "", false
	}

	return userID, true
}

// readLoop processes chat frames until the client disconnects
func (h *ChatWSHandler) readLoop(r *http.Request, userID string, conn *websocket.Conn) {
	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Str("user_id", userID).Msg("WebSocket read error")
			}
			return
		}

		switch frame.Type {
		case "message":
			h.handleChatFrame(r, userID, &frame)
		case "link":
			h.handleLinkFrame(r, userID, &frame)
		case "ping":
			h.push.Send(userID, &outboundFrame{Type: "pong"})
		default:
			h.push.Send(userID, &outboundFrame{Type: "error", Error: "unknown frame type: " + frame.Type})
		}
	}
}

func (h *ChatWSHandler) handleChatFrame(r *http.Request, userID string, frame *inboundFrame) {
	text := strings.TrimSpace(frame.Text)
	if text == "" {
		h.push.Send(userID, &outboundFrame{Type: "error", Error: "message text is required"})
		return
	}

	// Links pasted as chat text take the link path, not classification
	if reply := h.tryLink(r, userID, text); reply {
		return
	}

	message, err := h.chat.ProcessMessage(r.Context(), userID, text)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to process chat message")
		h.push.Send(userID, &outboundFrame{Type: "error", Error: "failed to process message"})
		return
	}

	h.push.Send(userID, &outboundFrame{Type: "message", UserID: userID, Message: message})
}

func (h *ChatWSHandler) handleLinkFrame(r *http.Request, userID string, frame *inboundFrame) {
	rawURL := strings.TrimSpace(frame.URL)
	if rawURL == "" {
		h.push.Send(userID, &outboundFrame{Type: "error", Error: "link URL is required"})
		return
	}

	message, err := h.jobs.HandleLink(r.Context(), userID, rawURL)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to process link")
		h.push.Send(userID, &outboundFrame{Type: "error", Error: "failed to process link"})
		return
	}

	h.push.Send(userID, &outboundFrame{Type: "message", UserID: userID, Message: message})
}

// tryLink routes bare product URLs sent as plain text through the link
// pipeline. Returns true when the text was handled as a link.
func (h *ChatWSHandler) tryLink(r *http.Request, userID, text string) bool {
	if strings.ContainsAny(text, " \t\n") {
		return false
	}
	if !strings.HasPrefix(text, "http://") && !strings.HasPrefix(text, "https://") {
		return false
	}

	message, err := h.jobs.HandleLink(r.Context(), userID, text)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to process pasted link")
		h.push.Send(userID, &outboundFrame{Type: "error", Error: "failed to process link"})
		return true
	}

	h.push.Send(userID, &outboundFrame{Type: "message", UserID: userID, Message: message})
	return true
}
