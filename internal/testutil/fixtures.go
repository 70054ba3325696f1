package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mira/companion-chat-backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	email      string
	password   string
	chatName   string
	subscribed bool
	admin      bool
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		email:    fmt.Sprintf("testuser_%s@example.com", uuid.New().String()[:8]),
		password: "testpassword123",
	}
}

func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = email
	return b
}

func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

func (b *UserBuilder) WithChatName(name string) *UserBuilder {
	b.chatName = name
	return b
}

func (b *UserBuilder) Subscribed() *UserBuilder {
	b.subscribed = true
	return b
}

func (b *UserBuilder) Admin() *UserBuilder {
	b.admin = true
	return b
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	status := domain.StatusNotSubscribed
	if b.subscribed {
		status = domain.StatusSubscribed
	}

	user := &domain.User{
		ID:                 uuid.New(),
		Email:              b.email,
		PasswordHash:       string(hashedPassword),
		ChatName:           b.chatName,
		IsAdmin:            b.admin,
		SubscriptionStatus: status,
		PersonalityMode:    domain.DefaultPersonalityMode,
		GenderPreference:   domain.GenderFemale,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user, b.password
}

// CreateConversation inserts a conversation owned by the given user.
func CreateConversation(t *testing.T, db *gorm.DB, userID uuid.UUID, title string) *domain.Conversation {
	t.Helper()

	conversation := &domain.Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(conversation).Error; err != nil {
		t.Fatalf("failed to create conversation: %v", err)
	}
	return conversation
}

// CreateMessage inserts a message row directly, bypassing the append
// transaction, so tests can control seq and createdAt.
func CreateMessage(t *testing.T, db *gorm.DB, conversationID uuid.UUID, role domain.MessageRole, content string, seq int64, createdAt time.Time) *domain.Message {
	t.Helper()

	message := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Seq:            seq,
		CreatedAt:      createdAt,
	}
	if err := db.Create(message).Error; err != nil {
		t.Fatalf("failed to create message: %v", err)
	}
	return message
}

// SeedCompanionConfig inserts a minimal companion configuration row.
func SeedCompanionConfig(t *testing.T, db *gorm.DB) *domain.CompanionConfig {
	t.Helper()

	config := &domain.CompanionConfig{
		ID:                        domain.CompanionConfigID,
		Name:                      "Aria",
		FemalePersona:             "You present as a woman in her late twenties.",
		DefaultGender:             domain.GenderFemale,
		DefaultLength:             domain.LengthModerate,
		DefaultStyle:              domain.StyleCasual,
		BriefLengthInstruction:    "Keep replies short.",
		ModerateLengthInstruction: "Reply in a short paragraph.",
		DetailedLengthInstruction: "Reply in depth.",
		CasualStyleInstruction:    "Write casually.",
		RomanticStyleInstruction:  "Write warmly.",
		BriefMaxTokens:            150,
		ModerateMaxTokens:         400,
		DetailedMaxTokens:         900,
		GeneralModel:              "mistral",
		LongFormModel:             "mixtral",
		Temperature:               0.8,
		WelcomeTitle:              "Hey, I'm Aria",
		WelcomeMessage:            "What's on your mind?",
		UpdatedAt:                 time.Now(),
	}
	if err := db.Create(config).Error; err != nil {
		t.Fatalf("failed to seed companion config: %v", err)
	}
	return config
}
