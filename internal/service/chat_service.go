package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mira/companion-chat-backend/internal/domain"
	"github.com/mira/companion-chat-backend/internal/llm"
	"github.com/mira/companion-chat-backend/internal/repository"
)

var (
	ErrEmptyMessage   = errors.New("message must not be empty")
	ErrMessageTooLong = errors.New("message exceeds 10000 characters")
)

const (
	maxMessageLength = 10000
	historyLimit     = 10
)

// ChatRequest is the validated inbound chat payload.
type ChatRequest struct {
	Message         string
	ConversationID  *uuid.UUID
	PersonalityMode domain.PersonalityMode
	Length          domain.ResponseLength
	Style           domain.ResponseStyle
	StoreLocally    bool
	NewChat         bool
}

// Turn is a fully resolved chat turn, ready for generation.
type Turn struct {
	Params         llm.GenerateParams
	Length         domain.ResponseLength
	Style          domain.ResponseStyle
	ConversationID uuid.UUID
	UserMessageID  uuid.UUID
	IsNewChat      bool
	// Persisted is false for store-locally and unauthenticated turns;
	// those never touch the database.
	Persisted bool
}

type ChatResult struct {
	Response  string
	Model     string
	Length    domain.ResponseLength
	Style     domain.ResponseStyle
	IsNewChat bool
}

// ChatService orchestrates a chat turn: validate, gate, resolve the
// system prompt, load history, generate, persist.
type ChatService struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	companion        *CompanionService
	prompts          *PromptService
	quota            *QuotaService
	llm              *llm.Client
}

func NewChatService(
	conversationRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	companion *CompanionService,
	prompts *PromptService,
	quota *QuotaService,
	llmClient *llm.Client,
) *ChatService {
	return &ChatService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		companion:        companion,
		prompts:          prompts,
		quota:            quota,
		llm:              llmClient,
	}
}

// Prepare validates the request, applies the quota gate, resolves the
// prompt and model parameters, loads history and persists the user's
// message. The persisted content is always the user's original message;
// the ice-breaker wrapper is only ever sent to the model.
func (s *ChatService) Prepare(ctx context.Context, user *domain.User, req ChatRequest) (*Turn, error) {
	if utf8.RuneCountInString(req.Message) == 0 {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(req.Message) > maxMessageLength {
		return nil, ErrMessageTooLong
	}

	config, err := s.companion.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	length, style := s.resolvePreferences(user, req, config)
	gender := config.DefaultGender
	var userID *uuid.UUID
	if user != nil {
		userID = &user.ID
		if user.GenderPreference != "" {
			gender = user.GenderPreference
		}
	}

	iceBreaker := req.NewChat && user != nil && user.ChatName != ""

	systemPrompt, err := s.prompts.ResolveComplete(ctx, userID, req.PersonalityMode)
	if err != nil {
		return nil, err
	}
	systemPrompt = ReplaceConfigTokens(systemPrompt, config, gender, length, style)

	turn := &Turn{
		Params: llm.GenerateParams{
			Model:       llm.SelectModel(length, config.UseLongFormForDetailed, config.GeneralModel, config.LongFormModel),
			Temperature: config.Temperature,
			MaxTokens:   config.MaxTokens(length),
		},
		Length:    length,
		Style:     style,
		IsNewChat: req.NewChat,
		Persisted: user != nil && !req.StoreLocally,
	}

	var history []*domain.Message
	if turn.Persisted {
		// Subscribers are never gated; ice-breaker turns are
		// system-initiated and bypass the gate as well.
		gated := !user.IsSubscribed() && !iceBreaker

		if req.ConversationID != nil {
			conversation, err := s.conversationRepo.GetByID(ctx, *req.ConversationID)
			if err != nil {
				return nil, err
			}
			if conversation.UserID != user.ID {
				return nil, domain.ErrConversationNotFound
			}
			turn.ConversationID = conversation.ID

			// History is loaded before the current message is appended
			// so the in-flight turn is not duplicated in context.
			history, err = s.messageRepo.RecentHistory(ctx, conversation.ID, historyLimit)
			if err != nil {
				return nil, err
			}

			var userMessage *domain.Message
			if gated {
				userMessage, err = s.quota.AppendGated(ctx, user.ID, conversation.ID, req.Message)
			} else {
				userMessage, err = s.messageRepo.Append(ctx, conversation.ID, domain.RoleUser, req.Message)
			}
			if err != nil {
				return nil, err
			}
			turn.UserMessageID = userMessage.ID
		} else {
			conversation := &domain.Conversation{
				ID:     uuid.New(),
				UserID: user.ID,
				Title:  domain.NewConversationTitle(req.Message, iceBreaker),
			}

			// The gate runs before the conversation row exists, inside
			// the same transaction as the insert: a rejected first turn
			// leaves nothing behind.
			var userMessage *domain.Message
			var err error
			if gated {
				userMessage, err = s.quota.StartGated(ctx, user.ID, conversation, req.Message)
			} else {
				if err = s.conversationRepo.Create(ctx, conversation); err != nil {
					return nil, err
				}
				userMessage, err = s.messageRepo.Append(ctx, conversation.ID, domain.RoleUser, req.Message)
			}
			if err != nil {
				return nil, err
			}
			turn.ConversationID = conversation.ID
			turn.UserMessageID = userMessage.ID
		}
	}

	modelMessage := req.Message
	if iceBreaker {
		modelMessage = wrapIceBreaker(req.Message, user.ChatName)
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: string(domain.RoleSystem), Content: systemPrompt})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: string(domain.RoleUser), Content: modelMessage})
	turn.Params.Messages = messages

	return turn, nil
}

// StreamGenerate drives the streaming backend, forwarding each visible
// chunk and returning the accumulated response.
func (s *ChatService) StreamGenerate(ctx context.Context, turn *Turn, onChunk func(chunk string) error) (string, error) {
	var full strings.Builder
	err := s.llm.GenerateStream(ctx, turn.Params, func(chunk string) error {
		full.WriteString(chunk)
		return onChunk(chunk)
	})
	return full.String(), err
}

// CompleteTurn persists the assistant's reply and stamps the
// conversation. No-op for unpersisted turns.
func (s *ChatService) CompleteTurn(ctx context.Context, turn *Turn, response string) (uuid.UUID, error) {
	if !turn.Persisted {
		return uuid.Nil, nil
	}

	message, err := s.messageRepo.Append(ctx, turn.ConversationID, domain.RoleAssistant, response)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.conversationRepo.Touch(ctx, turn.ConversationID); err != nil {
		return message.ID, err
	}
	return message.ID, nil
}

// Generate runs the full non-streaming pipeline.
func (s *ChatService) Generate(ctx context.Context, user *domain.User, req ChatRequest) (*ChatResult, error) {
	turn, err := s.Prepare(ctx, user, req)
	if err != nil {
		return nil, err
	}

	response, err := s.llm.Generate(ctx, turn.Params)
	if err != nil {
		return nil, err
	}

	if _, err := s.CompleteTurn(ctx, turn, response); err != nil {
		return nil, err
	}

	return &ChatResult{
		Response:  response,
		Model:     turn.Params.Model,
		Length:    turn.Length,
		Style:     turn.Style,
		IsNewChat: req.NewChat,
	}, nil
}

func (s *ChatService) resolvePreferences(user *domain.User, req ChatRequest, config *domain.CompanionConfig) (domain.ResponseLength, domain.ResponseStyle) {
	length := config.DefaultLength
	style := config.DefaultStyle
	if user != nil {
		prefs := user.Prefs()
		if domain.IsValidLength(prefs.Length) {
			length = prefs.Length
		}
		if domain.IsValidStyle(prefs.Style) {
			style = prefs.Style
		}
	}
	if domain.IsValidLength(req.Length) {
		length = req.Length
	}
	if domain.IsValidStyle(req.Style) {
		style = req.Style
	}
	return length, style
}

// wrapIceBreaker hides a greeting instruction around the user's literal
// message. The wrapper is model-facing only; the transcript keeps the
// original message.
func wrapIceBreaker(message, chatName string) string {
	return "(" + chatName + " just started a new conversation with you. " +
		"Open with a warm, personalized greeting that uses their name, then respond to their message naturally.)\n\n" +
		message
}
