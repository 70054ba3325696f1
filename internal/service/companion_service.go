package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mira/companion-chat-backend/internal/domain"
	"github.com/mira/companion-chat-backend/internal/repository"
)

// CompanionService manages the singleton companion configuration and
// the versioned system prompt records.
type CompanionService struct {
	companionRepo repository.CompanionConfigRepository
	promptRepo    repository.SystemPromptRepository
}

func NewCompanionService(companionRepo repository.CompanionConfigRepository, promptRepo repository.SystemPromptRepository) *CompanionService {
	return &CompanionService{
		companionRepo: companionRepo,
		promptRepo:    promptRepo,
	}
}

func (s *CompanionService) GetConfig(ctx context.Context) (*domain.CompanionConfig, error) {
	return s.companionRepo.Get(ctx)
}

// ConfigUpdate holds the admin-editable fields; nil pointers leave the
// stored value untouched.
type ConfigUpdate struct {
	Name          *string `json:"name"`
	FemalePersona *string `json:"femalePersona"`
	MalePersona   *string `json:"malePersona"`

	DefaultGender *domain.Gender         `json:"defaultGender"`
	DefaultLength *domain.ResponseLength `json:"defaultLength"`
	DefaultStyle  *domain.ResponseStyle  `json:"defaultStyle"`

	BriefLengthInstruction    *string `json:"briefLengthInstruction"`
	ModerateLengthInstruction *string `json:"moderateLengthInstruction"`
	DetailedLengthInstruction *string `json:"detailedLengthInstruction"`

	CasualStyleInstruction       *string `json:"casualStyleInstruction"`
	RomanticStyleInstruction     *string `json:"romanticStyleInstruction"`
	IntellectualStyleInstruction *string `json:"intellectualStyleInstruction"`

	BriefMaxTokens    *int `json:"briefMaxTokens"`
	ModerateMaxTokens *int `json:"moderateMaxTokens"`
	DetailedMaxTokens *int `json:"detailedMaxTokens"`

	GeneralModel           *string  `json:"generalModel"`
	LongFormModel          *string  `json:"longFormModel"`
	UseLongFormForDetailed *bool    `json:"useLongFormForDetailed"`
	Temperature            *float64 `json:"temperature"`

	WelcomeTitle   *string `json:"welcomeTitle"`
	WelcomeMessage *string `json:"welcomeMessage"`
}

func (s *CompanionService) UpdateConfig(ctx context.Context, update ConfigUpdate) (*domain.CompanionConfig, error) {
	config, err := s.companionRepo.Get(ctx)
	if err != nil {
		return nil, err
	}

	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	applyString(&config.Name, update.Name)
	applyString(&config.FemalePersona, update.FemalePersona)
	applyString(&config.MalePersona, update.MalePersona)
	applyString(&config.BriefLengthInstruction, update.BriefLengthInstruction)
	applyString(&config.ModerateLengthInstruction, update.ModerateLengthInstruction)
	applyString(&config.DetailedLengthInstruction, update.DetailedLengthInstruction)
	applyString(&config.CasualStyleInstruction, update.CasualStyleInstruction)
	applyString(&config.RomanticStyleInstruction, update.RomanticStyleInstruction)
	applyString(&config.IntellectualStyleInstruction, update.IntellectualStyleInstruction)
	applyString(&config.GeneralModel, update.GeneralModel)
	applyString(&config.LongFormModel, update.LongFormModel)
	applyString(&config.WelcomeTitle, update.WelcomeTitle)
	applyString(&config.WelcomeMessage, update.WelcomeMessage)

	if update.DefaultGender != nil {
		config.DefaultGender = *update.DefaultGender
	}
	if update.DefaultLength != nil && domain.IsValidLength(*update.DefaultLength) {
		config.DefaultLength = *update.DefaultLength
	}
	if update.DefaultStyle != nil && domain.IsValidStyle(*update.DefaultStyle) {
		config.DefaultStyle = *update.DefaultStyle
	}
	if update.BriefMaxTokens != nil {
		config.BriefMaxTokens = *update.BriefMaxTokens
	}
	if update.ModerateMaxTokens != nil {
		config.ModerateMaxTokens = *update.ModerateMaxTokens
	}
	if update.DetailedMaxTokens != nil {
		config.DetailedMaxTokens = *update.DetailedMaxTokens
	}
	if update.UseLongFormForDetailed != nil {
		config.UseLongFormForDetailed = *update.UseLongFormForDetailed
	}
	if update.Temperature != nil {
		config.Temperature = *update.Temperature
	}

	config.UpdatedAt = time.Now()
	if err := s.companionRepo.Save(ctx, config); err != nil {
		return nil, err
	}
	return config, nil
}

// SeedDefault creates the configuration row when it does not exist yet.
// It is only called during explicit initialization; request paths treat
// a missing row as a fatal misconfiguration.
func (s *CompanionService) SeedDefault(ctx context.Context) error {
	_, err := s.companionRepo.Get(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrCompanionNotConfigured) {
		return err
	}

	config := &domain.CompanionConfig{
		ID:                           domain.CompanionConfigID,
		Name:                         "Aria",
		FemalePersona:                "You present as a woman in her late twenties.",
		MalePersona:                  "You present as a man in his late twenties.",
		DefaultGender:                domain.GenderFemale,
		DefaultLength:                domain.LengthModerate,
		DefaultStyle:                 domain.StyleCasual,
		BriefLengthInstruction:       "Keep replies to one or two short sentences.",
		ModerateLengthInstruction:    "Reply in a short paragraph.",
		DetailedLengthInstruction:    "Reply in depth, with several paragraphs when the topic deserves it.",
		CasualStyleInstruction:       "Write casually, like texting a close friend.",
		RomanticStyleInstruction:     "Write warmly and affectionately.",
		IntellectualStyleInstruction: "Write thoughtfully, exploring ideas and asking probing questions.",
		BriefMaxTokens:               150,
		ModerateMaxTokens:            400,
		DetailedMaxTokens:            900,
		GeneralModel:                 "mistral",
		LongFormModel:                "mixtral",
		UseLongFormForDetailed:       false,
		Temperature:                  0.8,
		WelcomeTitle:                 "Hey, I'm Aria",
		WelcomeMessage:               "I'm here whenever you want to talk. What's on your mind?",
		UpdatedAt:                    time.Now(),
	}
	return s.companionRepo.Save(ctx, config)
}

type CreatePromptInput struct {
	Name      string
	Content   string
	CreatedBy uuid.UUID
	Activate  bool
}

// CreatePrompt stores a new prompt version. The version number
// continues the highest existing version for the same name.
func (s *CompanionService) CreatePrompt(ctx context.Context, input CreatePromptInput) (*domain.SystemPrompt, error) {
	existing, err := s.promptRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	version := 1
	for _, p := range existing {
		if p.Name == input.Name && p.Version >= version {
			version = p.Version + 1
		}
	}

	prompt := &domain.SystemPrompt{
		ID:        uuid.New(),
		Name:      input.Name,
		Content:   input.Content,
		Version:   version,
		CreatedBy: input.CreatedBy,
		CreatedAt: time.Now(),
	}
	if err := s.promptRepo.Create(ctx, prompt); err != nil {
		return nil, err
	}

	if input.Activate {
		if err := s.promptRepo.Activate(ctx, prompt.ID); err != nil {
			return nil, err
		}
		prompt.IsActive = true
	}
	return prompt, nil
}

func (s *CompanionService) ListPrompts(ctx context.Context) ([]*domain.SystemPrompt, error) {
	return s.promptRepo.List(ctx)
}

func (s *CompanionService) ActivatePrompt(ctx context.Context, id uuid.UUID) error {
	return s.promptRepo.Activate(ctx, id)
}

func (s *CompanionService) DeletePrompt(ctx context.Context, id uuid.UUID) error {
	prompt, err := s.promptRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if prompt.IsActive {
		return errors.New("cannot delete the active prompt")
	}
	return s.promptRepo.Delete(ctx, id)
}
