package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mira/companion-chat-backend/internal/domain"
	"gorm.io/gorm"
)

type systemPromptRepository struct {
	db *gorm.DB
}

func NewSystemPromptRepository(db *gorm.DB) *systemPromptRepository {
	return &systemPromptRepository{db: db}
}

func (r *systemPromptRepository) Create(ctx context.Context, prompt *domain.SystemPrompt) error {
	return r.db.WithContext(ctx).Create(prompt).Error
}

func (r *systemPromptRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SystemPrompt, error) {
	var prompt domain.SystemPrompt
	err := r.db.WithContext(ctx).First(&prompt, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPromptNotFound
		}
		return nil, err
	}
	return &prompt, nil
}

func (r *systemPromptRepository) GetActive(ctx context.Context) (*domain.SystemPrompt, error) {
	var prompt domain.SystemPrompt
	err := r.db.WithContext(ctx).First(&prompt, "is_active = ?", true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPromptNotFound
		}
		return nil, err
	}
	return &prompt, nil
}

func (r *systemPromptRepository) List(ctx context.Context) ([]*domain.SystemPrompt, error) {
	var prompts []*domain.SystemPrompt
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&prompts).Error
	return prompts, err
}

func (r *systemPromptRepository) Activate(ctx context.Context, id uuid.UUID) error {
	// Deactivate-all and activate-one in a single transaction so the
	// at-most-one-active invariant survives concurrent activations.
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prompt domain.SystemPrompt
		if err := tx.First(&prompt, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrPromptNotFound
			}
			return err
		}
		if err := tx.Model(&domain.SystemPrompt{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&domain.SystemPrompt{}).
			Where("id = ?", id).
			Update("is_active", true).Error
	})
}

func (r *systemPromptRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.SystemPrompt{}, "id = ?", id).Error
}
