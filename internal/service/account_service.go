package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mira/companion-chat-backend/internal/domain"
	"github.com/mira/companion-chat-backend/internal/repository"
	"gorm.io/gorm"
)

type AccountService struct {
	userRepo repository.UserRepository
}

func NewAccountService(userRepo repository.UserRepository) *AccountService {
	return &AccountService{userRepo: userRepo}
}

type PreferencesUpdate struct {
	ChatName         *string                 `json:"chatName"`
	PersonalityMode  *domain.PersonalityMode `json:"personalityMode"`
	GenderPreference *domain.Gender          `json:"genderPreference"`
	Length           *domain.ResponseLength  `json:"length"`
	Style            *domain.ResponseStyle   `json:"style"`
}

func (s *AccountService) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// DeleteUser removes the account and everything it owns: the
// repository cascades conversations, messages and sessions in one
// transaction.
func (s *AccountService) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrUserNotFound
		}
		return err
	}
	return s.userRepo.Delete(ctx, userID)
}

// UpdatePreferences overwrites only the provided fields. Invalid enum
// values are ignored rather than rejected, matching the chat request
// fallback behavior.
func (s *AccountService) UpdatePreferences(ctx context.Context, userID uuid.UUID, update PreferencesUpdate) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.ChatName != nil {
		user.ChatName = *update.ChatName
	}
	if update.PersonalityMode != nil && domain.IsValidMode(*update.PersonalityMode) {
		user.PersonalityMode = *update.PersonalityMode
	}
	if update.GenderPreference != nil {
		user.GenderPreference = *update.GenderPreference
	}

	if update.Length != nil || update.Style != nil {
		prefs := user.Prefs()
		if update.Length != nil && domain.IsValidLength(*update.Length) {
			prefs.Length = *update.Length
		}
		if update.Style != nil && domain.IsValidStyle(*update.Style) {
			prefs.Style = *update.Style
		}
		encoded, err := json.Marshal(prefs)
		if err != nil {
			return nil, err
		}
		user.ChatPreferences = encoded
	}

	user.UpdatedAt = time.Now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
