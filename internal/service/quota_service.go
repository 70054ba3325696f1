package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mira/companion-chat-backend/internal/domain"
	"github.com/mira/companion-chat-backend/internal/repository"
)

// WeekStart returns the most recent Monday 00:00 in t's location.
func WeekStart(t time.Time) time.Time {
	daysBack := int(t.Weekday()) - int(time.Monday)
	if daysBack < 0 {
		// Sunday maps six days back.
		daysBack = 6
	}
	year, month, day := t.AddDate(0, 0, -daysBack).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// QuotaService enforces the weekly message cap for authenticated users
// without a subscription. The quota is derived, not stored: it is the
// count of role=user messages across all of the user's conversations
// since the start of the current week.
type QuotaService struct {
	messageRepo repository.MessageRepository
	limit       int
}

func NewQuotaService(messageRepo repository.MessageRepository, limit int) *QuotaService {
	return &QuotaService{
		messageRepo: messageRepo,
		limit:       limit,
	}
}

func (s *QuotaService) Limit() int {
	return s.limit
}

// AppendGated persists the user message only if the weekly allowance is
// not exhausted. The check and the insert are atomic, so two concurrent
// requests cannot both slip under the limit. Rejection returns a
// *domain.QuotaError carrying the machine-readable reset time.
func (s *QuotaService) AppendGated(ctx context.Context, userID, conversationID uuid.UUID, content string) (*domain.Message, error) {
	weekStart := WeekStart(time.Now())
	message, used, err := s.messageRepo.AppendUserMessageWithQuota(ctx, userID, conversationID, content, weekStart, s.limit)
	return message, s.wrapRejection(weekStart, used, err)
}

// StartGated opens a new conversation under the same gate: conversation
// and first message land together, or not at all on rejection.
func (s *QuotaService) StartGated(ctx context.Context, userID uuid.UUID, conversation *domain.Conversation, content string) (*domain.Message, error) {
	weekStart := WeekStart(time.Now())
	message, used, err := s.messageRepo.StartConversationWithQuota(ctx, userID, conversation, content, weekStart, s.limit)
	return message, s.wrapRejection(weekStart, used, err)
}

func (s *QuotaService) wrapRejection(weekStart time.Time, used int64, err error) error {
	if errors.Is(err, domain.ErrQuotaExhausted) {
		return &domain.QuotaError{
			Limit:    s.limit,
			Used:     int(used),
			ResetsAt: weekStart.AddDate(0, 0, 7),
		}
	}
	return err
}

// Usage reports the current week's consumption for display purposes.
func (s *QuotaService) Usage(ctx context.Context, userID uuid.UUID) (used int64, limit int, resetsAt time.Time, err error) {
	weekStart := WeekStart(time.Now())
	used, err = s.messageRepo.CountUserMessagesSince(ctx, userID, weekStart)
	return used, s.limit, weekStart.AddDate(0, 0, 7), err
}
