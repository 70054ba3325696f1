package service

import (
	"github.com/mira/companion-chat-backend/internal/config"
	"github.com/mira/companion-chat-backend/internal/llm"
	"github.com/mira/companion-chat-backend/internal/repository"
)

type Services struct {
	Auth      *AuthService
	Account   *AccountService
	Companion *CompanionService
	Prompt    *PromptService
	Quota     *QuotaService
	Chat      *ChatService
}

func NewServices(repos *repository.Repositories, llmClient *llm.Client, cfg *config.Config) *Services {
	companion := NewCompanionService(repos.Companion, repos.SystemPrompt)
	prompts := NewPromptService(repos.SystemPrompt, repos.User)
	quota := NewQuotaService(repos.Message, cfg.FreeWeeklyMessageLimit)

	return &Services{
		Auth:      NewAuthService(repos.User, repos.Session, cfg),
		Account:   NewAccountService(repos.User),
		Companion: companion,
		Prompt:    prompts,
		Quota:     quota,
		Chat:      NewChatService(repos.Conversation, repos.Message, companion, prompts, quota, llmClient),
	}
}
