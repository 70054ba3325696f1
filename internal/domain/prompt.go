package domain

import (
	"time"

	"github.com/google/uuid"
)

// SystemPrompt is a versioned prompt record. At most one row is active
// at a time; activation swaps the flag inside a single transaction.
type SystemPrompt struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name      string    `json:"name" gorm:"not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	Version   int       `json:"version" gorm:"not null;default:1"`
	IsActive  bool      `json:"isActive" gorm:"not null;default:false;index"`
	CreatedBy uuid.UUID `json:"createdBy" gorm:"type:uuid"`
	CreatedAt time.Time `json:"createdAt"`
}

type PersonalityMode string

const (
	ModeNurturing PersonalityMode = "nurturing"
	ModePlayful   PersonalityMode = "playful"
	ModeDominant  PersonalityMode = "dominant"
)

// DefaultPersonalityMode is used whenever a request or stored
// preference carries an unknown mode.
const DefaultPersonalityMode = ModeNurturing

func IsValidMode(m PersonalityMode) bool {
	switch m {
	case ModeNurturing, ModePlayful, ModeDominant:
		return true
	}
	return false
}
