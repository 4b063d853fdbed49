// -----------------------------------------------------------------------
// Conversation - Per-user bounded message log
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// MaxConversationMessages is the hard cap on messages kept per conversation.
// Appending beyond the cap evicts the oldest message first (FIFO).
const MaxConversationMessages = 50

// MessageRole identifies the sender of a conversation message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ProductCard is a display-oriented product summary attached directly to a
// message. It carries enough to render a card in the client without another
// round trip.
type ProductCard struct {
	ProductID    string  `json:"product_id"`
	Domain       string  `json:"domain,omitempty"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	Price        float64 `json:"price,omitempty"`
	ImageURL     string  `json:"image_url,omitempty"`
	Rating       float64 `json:"rating,omitempty"`
	AffiliateURL string  `json:"affiliate_url,omitempty"`
}

// ProductIdentifier is a reference-oriented product summary for products
// mentioned in passing ("related" products).
type ProductIdentifier struct {
	ProductID string `json:"product_id"`
}

// Message is a single immutable entry in a conversation. Once appended it is
// never modified.
type Message struct {
	ID              string              `json:"id"`
	Role            MessageRole         `json:"role"`
	Timestamp       time.Time           `json:"timestamp"`
	Content         string              `json:"content"`
	Products        []ProductCard       `json:"products,omitempty"`
	RelatedProducts []ProductIdentifier `json:"related_products,omitempty"`
}

// Conversation is the durable per-user message log. One conversation exists
// per user, keyed by UserID. Mutation happens only through read-modify-write
// cycles owned by the conversation service.
type Conversation struct {
	UserID    string    `json:"user_id" badgerhold:"key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// NewConversation creates an empty conversation for a user
func NewConversation(userID string) *Conversation {
	now := time.Now()
	return &Conversation{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []Message{},
	}
}

// Append adds a message to the log, evicting the oldest message when the cap
// is exceeded. The newest message is never the one evicted.
func (c *Conversation) Append(msg Message) {
	c.Messages = append(c.Messages, msg)
	for len(c.Messages) > MaxConversationMessages {
		c.Messages = c.Messages[1:]
	}
	c.UpdatedAt = time.Now()
}

// Recent returns up to n of the most recent messages in chronological order.
func (c *Conversation) Recent(n int) []Message {
	if n <= 0 || len(c.Messages) == 0 {
		return nil
	}
	if len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}
