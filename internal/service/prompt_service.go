package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/mira/companion-chat-backend/internal/domain"
	"github.com/mira/companion-chat-backend/internal/repository"
)

// DefaultSystemPrompt is used whenever no versioned prompt is active.
// Template tokens are filled by ReplaceConfigTokens; unresolved tokens
// are left verbatim.
const DefaultSystemPrompt = "You are {{companion_name}}, a warm and attentive AI companion. " +
	"{{gender_persona}} You are talking with {{name}}. " +
	"Stay in character, remember what they tell you, and never mention that you are a language model. " +
	"{{length_instruction}} {{style_instruction}}"

// Overlay fragments are additive: they are appended below the base
// system prompt, never replace it.
const (
	nurturingOverlay = "Personality: be gentle, patient and reassuring. Check in on how they are feeling and offer comfort before advice."
	playfulOverlay   = "Personality: be teasing, witty and spontaneous. Keep the energy light, joke around and be a little mischievous."
	dominantOverlay  = "Personality: be confident, direct and take the lead in the conversation. Decide where the conversation goes and be assertive about it."
)

// BuildOverlay maps a personality mode to its additive prompt fragment.
// Pure; an invalid mode falls back to the default.
func BuildOverlay(mode domain.PersonalityMode, userName string) string {
	if !domain.IsValidMode(mode) {
		mode = domain.DefaultPersonalityMode
	}

	var overlay string
	switch mode {
	case domain.ModePlayful:
		overlay = playfulOverlay
	case domain.ModeDominant:
		overlay = dominantOverlay
	default:
		overlay = nurturingOverlay
	}

	if userName != "" {
		overlay += " Address them as " + userName + " when it feels natural."
	}
	return overlay
}

// ReplaceConfigTokens performs the legacy find-and-replace template
// substitution. It is not a templating engine: unknown tokens are left
// verbatim and no error is ever raised.
func ReplaceConfigTokens(prompt string, cfg *domain.CompanionConfig, gender domain.Gender, length domain.ResponseLength, style domain.ResponseStyle) string {
	prompt = strings.ReplaceAll(prompt, "{{companion_name}}", cfg.Name)
	prompt = strings.ReplaceAll(prompt, "{{gender_persona}}", cfg.Persona(gender))
	prompt = strings.ReplaceAll(prompt, "{{length_instruction}}", cfg.LengthInstruction(length))
	prompt = strings.ReplaceAll(prompt, "{{style_instruction}}", cfg.StyleInstruction(style))
	return prompt
}

type PromptService struct {
	promptRepo repository.SystemPromptRepository
	userRepo   repository.UserRepository
}

func NewPromptService(promptRepo repository.SystemPromptRepository, userRepo repository.UserRepository) *PromptService {
	return &PromptService{
		promptRepo: promptRepo,
		userRepo:   userRepo,
	}
}

// ResolveBase returns the currently active versioned prompt, or the
// hardcoded default when none is active. When the user has a chat name
// set, it is substituted into the {{name}} placeholder.
func (s *PromptService) ResolveBase(ctx context.Context, userID *uuid.UUID) (string, error) {
	base := DefaultSystemPrompt

	prompt, err := s.promptRepo.GetActive(ctx)
	if err == nil {
		base = prompt.Content
	} else if !errors.Is(err, domain.ErrPromptNotFound) {
		return "", err
	}

	if userID != nil {
		user, err := s.userRepo.GetByID(ctx, *userID)
		if err == nil && user.ChatName != "" {
			base = strings.ReplaceAll(base, "{{name}}", user.ChatName)
		}
	}

	return base, nil
}

// ResolveComplete layers the personality overlay below the base prompt.
// Mode precedence: explicit per-request override, then the stored user
// preference, then the global default.
func (s *PromptService) ResolveComplete(ctx context.Context, userID *uuid.UUID, modeOverride domain.PersonalityMode) (string, error) {
	base, err := s.ResolveBase(ctx, userID)
	if err != nil {
		return "", err
	}

	mode := domain.DefaultPersonalityMode
	userName := ""
	if userID != nil {
		if user, err := s.userRepo.GetByID(ctx, *userID); err == nil {
			userName = user.ChatName
			if domain.IsValidMode(user.PersonalityMode) {
				mode = user.PersonalityMode
			}
		}
	}
	if domain.IsValidMode(modeOverride) {
		mode = modeOverride
	}

	return base + "\n\n" + BuildOverlay(mode, userName), nil
}
