package postgres

import (
	"context"
	"errors"

	"github.com/mira/companion-chat-backend/internal/domain"
	"gorm.io/gorm"
)

type companionConfigRepository struct {
	db *gorm.DB
}

func NewCompanionConfigRepository(db *gorm.DB) *companionConfigRepository {
	return &companionConfigRepository{db: db}
}

func (r *companionConfigRepository) Get(ctx context.Context) (*domain.CompanionConfig, error) {
	var config domain.CompanionConfig
	err := r.db.WithContext(ctx).First(&config, "id = ?", domain.CompanionConfigID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCompanionNotConfigured
		}
		return nil, err
	}
	return &config, nil
}

func (r *companionConfigRepository) Save(ctx context.Context, config *domain.CompanionConfig) error {
	config.ID = domain.CompanionConfigID
	return r.db.WithContext(ctx).Save(config).Error
}
