package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrCompanionNotConfigured = errors.New("companion is not configured")
	ErrConversationNotFound   = errors.New("conversation not found")
	ErrPromptNotFound         = errors.New("system prompt not found")
	ErrUserNotFound           = errors.New("user not found")
	ErrQuotaExhausted         = errors.New("weekly message quota exhausted")
)

// QuotaError carries the machine-readable rejection payload returned
// to free-tier users who exhausted the weekly message allowance.
type QuotaError struct {
	Limit    int
	Used     int
	ResetsAt time.Time
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("weekly message limit reached (%d/%d), resets at %s",
		e.Used, e.Limit, e.ResetsAt.Format(time.RFC3339))
}
