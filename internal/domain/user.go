package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SubscriptionStatus string

const (
	StatusSubscribed    SubscriptionStatus = "subscribed"
	StatusNotSubscribed SubscriptionStatus = "not_subscribed"
)

type User struct {
	ID                 uuid.UUID          `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Email              string             `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash       string             `json:"-" gorm:"not null"`
	ChatName           string             `json:"chatName"`
	IsAdmin            bool               `json:"isAdmin" gorm:"not null;default:false"`
	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus" gorm:"not null;default:'not_subscribed'"`
	Credits            int                `json:"credits" gorm:"not null;default:0"`
	PersonalityMode    PersonalityMode    `json:"personalityMode" gorm:"not null;default:'nurturing'"`
	GenderPreference   Gender             `json:"genderPreference" gorm:"not null;default:'female'"`
	ChatPreferences    datatypes.JSON     `json:"chatPreferences" gorm:"type:jsonb"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

func (u *User) IsSubscribed() bool {
	return u.SubscriptionStatus == StatusSubscribed
}

// ChatPrefs is the decoded shape of User.ChatPreferences.
type ChatPrefs struct {
	Length ResponseLength `json:"length,omitempty"`
	Style  ResponseStyle  `json:"style,omitempty"`
}

// Prefs decodes the stored chat preferences. A missing or malformed
// column decodes to the zero value; callers fall through to defaults.
func (u *User) Prefs() ChatPrefs {
	var p ChatPrefs
	if len(u.ChatPreferences) > 0 {
		_ = json.Unmarshal(u.ChatPreferences, &p)
	}
	return p
}

type UserSession struct {
	ID               uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID           uuid.UUID `json:"userId" gorm:"type:uuid;not null;index"`
	RefreshTokenHash string    `json:"-" gorm:"not null"`
	ExpiresAt        time.Time `json:"expiresAt" gorm:"not null"`
	CreatedAt        time.Time `json:"createdAt"`
}
