package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mira/companion-chat-backend/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	// Delete removes the user and cascades to their conversations,
	// messages and sessions in one transaction.
	Delete(ctx context.Context, id uuid.UUID) error
}

type SessionRepository interface {
	// Replace removes the user's existing sessions and stores the new
	// one in a single transaction.
	Replace(ctx context.Context, session *domain.UserSession) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserSession, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

type ConversationRepository interface {
	Create(ctx context.Context, conversation *domain.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Conversation, error)
	Touch(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type MessageRepository interface {
	// Append inserts a message with the next per-conversation sequence
	// number, assigned under a lock on the conversation row.
	Append(ctx context.Context, conversationID uuid.UUID, role domain.MessageRole, content string) (*domain.Message, error)
	// AppendUserMessageWithQuota appends a role=user message only if the
	// user has fewer than limit user messages since the given time. The
	// check and the insert run in one transaction holding a lock on the
	// user row, so concurrent requests cannot both pass the gate. On
	// rejection it returns domain.ErrQuotaExhausted and the used count.
	AppendUserMessageWithQuota(ctx context.Context, userID, conversationID uuid.UUID, content string, since time.Time, limit int) (*domain.Message, int64, error)
	// StartConversationWithQuota creates the conversation and appends
	// its first role=user message under the same gate and transaction
	// as AppendUserMessageWithQuota. On rejection nothing is written:
	// neither the conversation nor the message row survives.
	StartConversationWithQuota(ctx context.Context, userID uuid.UUID, conversation *domain.Conversation, content string, since time.Time, limit int) (*domain.Message, int64, error)
	RecentHistory(ctx context.Context, conversationID uuid.UUID, limit int) ([]*domain.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]*domain.Message, error)
	CountUserMessagesSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
}

type CompanionConfigRepository interface {
	Get(ctx context.Context) (*domain.CompanionConfig, error)
	Save(ctx context.Context, config *domain.CompanionConfig) error
}

type SystemPromptRepository interface {
	Create(ctx context.Context, prompt *domain.SystemPrompt) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SystemPrompt, error)
	GetActive(ctx context.Context) (*domain.SystemPrompt, error)
	List(ctx context.Context) ([]*domain.SystemPrompt, error)
	// Activate deactivates every other prompt and activates the given
	// one inside a single transaction, preserving the at-most-one-active
	// invariant under concurrent admin sessions.
	Activate(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type Repositories struct {
	User         UserRepository
	Session      SessionRepository
	Conversation ConversationRepository
	Message      MessageRepository
	Companion    CompanionConfigRepository
	SystemPrompt SystemPromptRepository
}
