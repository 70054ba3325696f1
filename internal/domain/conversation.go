package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

type Conversation struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;not null;index"`
	Title     string    `json:"title" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message rows are append-only. Seq is a per-conversation monotonic
// counter assigned inside the append transaction so ordering does not
// depend on timestamp granularity.
type Message struct {
	ID             uuid.UUID   `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ConversationID uuid.UUID   `json:"conversationId" gorm:"type:uuid;not null;index:idx_messages_conversation_seq"`
	Role           MessageRole `json:"role" gorm:"not null"`
	Content        string      `json:"content" gorm:"type:text;not null"`
	Seq            int64       `json:"seq" gorm:"not null;index:idx_messages_conversation_seq"`
	CreatedAt      time.Time   `json:"createdAt" gorm:"index"`
}

// NewConversationTitle derives a title from the first user message:
// a fixed placeholder for ice-breaker turns, otherwise the first 50
// characters of the message.
func NewConversationTitle(firstMessage string, iceBreaker bool) string {
	if iceBreaker {
		return "New conversation"
	}
	runes := []rune(firstMessage)
	if len(runes) > 50 {
		return string(runes[:50])
	}
	return firstMessage
}
