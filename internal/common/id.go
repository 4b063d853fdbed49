package common

import (
	"github.com/google/uuid"
)

// NewMessageID generates a unique message ID with the "msg_" prefix
// Format: msg_<uuid>
func NewMessageID() string {
	return "msg_" + uuid.New().String()
}

// NewJobID generates a unique scrape job ID
func NewJobID() string {
	return uuid.New().String()
}

// NewErrorID generates a unique ID for a recorded product error
// Format: err_<uuid>
func NewErrorID() string {
	return "err_" + uuid.New().String()
}
