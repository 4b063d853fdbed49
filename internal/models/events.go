package models

// MessageAppended is the event payload published after an assistant message
// is persisted to a conversation. The push gateway forwards it to the user's
// live connection when one exists.
type MessageAppended struct {
	UserID  string   `json:"user_id"`
	Message *Message `json:"message"`
}
