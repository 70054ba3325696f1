package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mira/companion-chat-backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *messageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Append(ctx context.Context, conversationID uuid.UUID, role domain.MessageRole, content string) (*domain.Message, error) {
	var message *domain.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		message, err = appendMessage(tx, conversationID, role, content)
		return err
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

func (r *messageRepository) AppendUserMessageWithQuota(ctx context.Context, userID, conversationID uuid.UUID, content string, since time.Time, limit int) (*domain.Message, int64, error) {
	var (
		message *domain.Message
		used    int64
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serialize concurrent requests from the same user on the user
		// row so the count below cannot go stale before the insert.
		var user domain.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", userID).Error; err != nil {
			return err
		}

		if err := countUserMessages(tx, userID, since, &used); err != nil {
			return err
		}
		if used >= int64(limit) {
			return domain.ErrQuotaExhausted
		}

		var err error
		message, err = appendMessage(tx, conversationID, domain.RoleUser, content)
		return err
	})
	if err != nil {
		return nil, used, err
	}
	return message, used, nil
}

func (r *messageRepository) StartConversationWithQuota(ctx context.Context, userID uuid.UUID, conversation *domain.Conversation, content string, since time.Time, limit int) (*domain.Message, int64, error) {
	var (
		message *domain.Message
		used    int64
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user domain.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", userID).Error; err != nil {
			return err
		}

		if err := countUserMessages(tx, userID, since, &used); err != nil {
			return err
		}
		if used >= int64(limit) {
			// Rolls back the whole turn; no conversation row is left
			// behind on rejection.
			return domain.ErrQuotaExhausted
		}

		if err := tx.Create(conversation).Error; err != nil {
			return err
		}

		var err error
		message, err = appendMessage(tx, conversation.ID, domain.RoleUser, content)
		return err
	})
	if err != nil {
		return nil, used, err
	}
	return message, used, nil
}

func (r *messageRepository) RecentHistory(ctx context.Context, conversationID uuid.UUID, limit int) ([]*domain.Message, error) {
	var messages []*domain.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	// Fetched newest-first; reverse into chronological order for model
	// context.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *messageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]*domain.Message, error) {
	var messages []*domain.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq ASC").
		Find(&messages).Error
	return messages, err
}

func (r *messageRepository) CountUserMessagesSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := countUserMessages(r.db.WithContext(ctx), userID, since, &count)
	return count, err
}

func countUserMessages(tx *gorm.DB, userID uuid.UUID, since time.Time, count *int64) error {
	return tx.Model(&domain.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.user_id = ? AND messages.role = ? AND messages.created_at >= ?",
			userID, domain.RoleUser, since).
		Count(count).Error
}

func appendMessage(tx *gorm.DB, conversationID uuid.UUID, role domain.MessageRole, content string) (*domain.Message, error) {
	// Lock the conversation row while assigning the next sequence
	// number so concurrent appends cannot collide.
	var conversation domain.Conversation
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&conversation, "id = ?", conversationID).Error; err != nil {
		return nil, err
	}

	var maxSeq int64
	if err := tx.Model(&domain.Message{}).
		Where("conversation_id = ?", conversationID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error; err != nil {
		return nil, err
	}

	message := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Seq:            maxSeq + 1,
		CreatedAt:      time.Now(),
	}
	if err := tx.Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}
