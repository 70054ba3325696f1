package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/mira/companion-chat-backend/internal/api/middleware"
	"github.com/mira/companion-chat-backend/internal/domain"
	"github.com/mira/companion-chat-backend/internal/service"
)

type ChatHandler struct {
	chatService      *service.ChatService
	companionService *service.CompanionService
	authService      *service.AuthService
}

func NewChatHandler(chatService *service.ChatService, companionService *service.CompanionService, authService *service.AuthService) *ChatHandler {
	return &ChatHandler{
		chatService:      chatService,
		companionService: companionService,
		authService:      authService,
	}
}

type chatPayload struct {
	Message        string  `json:"message"`
	ConversationID *string `json:"conversationId,omitempty"`
	Preferences    *struct {
		Length string `json:"length,omitempty"`
		Style  string `json:"style,omitempty"`
	} `json:"preferences,omitempty"`
	PersonalityMode string `json:"personalityMode,omitempty"`
	StoreLocally    bool   `json:"storeLocally,omitempty"`
	NewChat         bool   `json:"newChat,omitempty"`
}

type streamEvent struct {
	Type               string `json:"type"`
	Content            string `json:"content,omitempty"`
	Error              string `json:"error,omitempty"`
	ConversationID     string `json:"conversationId,omitempty"`
	UserMessageID      string `json:"userMessageId,omitempty"`
	AssistantMessageID string `json:"assistantMessageId,omitempty"`
	IsNewChat          bool   `json:"isNewChat,omitempty"`
}

type chatResponse struct {
	Response  string `json:"response"`
	Model     string `json:"model"`
	Length    string `json:"length"`
	Style     string `json:"style"`
	IsNewChat bool   `json:"isNewChat"`
}

type quotaResponse struct {
	Error    string `json:"error"`
	Limit    int    `json:"limit"`
	Used     int    `json:"used"`
	ResetsAt string `json:"resetsAt"`
}

// Stream serves POST /api/chat as a Server-Sent-Events response. All
// request failures before generation starts are plain JSON errors; once
// the stream is open, failures surface as a terminal in-band error
// event on the already-committed 200.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	req, user, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	turn, err := h.chatService.Prepare(r.Context(), user, req)
	if err != nil {
		h.writePrepareError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	emit := func(event streamEvent) {
		data, _ := json.Marshal(event)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	// The request context is tied to the client connection, so a client
	// disconnect cancels the upstream generation call.
	response, err := h.chatService.StreamGenerate(r.Context(), turn, func(chunk string) error {
		emit(streamEvent{Type: "text", Content: chunk})
		return nil
	})
	if err != nil {
		log.Printf("ERROR [ChatHandler.Stream] generation failed: %v", err)
		emit(streamEvent{Type: "error", Error: "Stream failed"})
		return
	}

	assistantMessageID, err := h.chatService.CompleteTurn(r.Context(), turn, response)
	if err != nil {
		log.Printf("ERROR [ChatHandler.Stream] failed to persist assistant message: %v", err)
		emit(streamEvent{Type: "error", Error: "Stream failed"})
		return
	}

	done := streamEvent{Type: "done", IsNewChat: turn.IsNewChat}
	if turn.Persisted {
		done.ConversationID = turn.ConversationID.String()
		done.UserMessageID = turn.UserMessageID.String()
		done.AssistantMessageID = assistantMessageID.String()
	}
	emit(done)
}

// NonStreaming serves POST /api/chat/non-streaming.
func (h *ChatHandler) NonStreaming(w http.ResponseWriter, r *http.Request) {
	req, user, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.chatService.Generate(r.Context(), user, req)
	if err != nil {
		h.writePrepareError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:  result.Response,
		Model:     result.Model,
		Length:    string(result.Length),
		Style:     string(result.Style),
		IsNewChat: result.IsNewChat,
	})
}

// GetConfig serves GET /api/chat/config, the public subset of the
// companion configuration the frontend needs before the first turn.
func (h *ChatHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	config, err := h.companionService.GetConfig(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrCompanionNotConfigured) {
			writeError(w, http.StatusNotFound, "Companion is not configured")
			return
		}
		log.Printf("ERROR [ChatHandler.GetConfig] %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"name":           config.Name,
		"defaultGender":  string(config.DefaultGender),
		"defaultLength":  string(config.DefaultLength),
		"defaultStyle":   string(config.DefaultStyle),
		"welcomeTitle":   config.WelcomeTitle,
		"welcomeMessage": config.WelcomeMessage,
	})
}

func (h *ChatHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (service.ChatRequest, *domain.User, bool) {
	var payload chatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return service.ChatRequest{}, nil, false
	}

	req := service.ChatRequest{
		Message:         payload.Message,
		PersonalityMode: domain.PersonalityMode(payload.PersonalityMode),
		StoreLocally:    payload.StoreLocally,
		NewChat:         payload.NewChat,
	}
	if payload.Preferences != nil {
		req.Length = domain.ResponseLength(payload.Preferences.Length)
		req.Style = domain.ResponseStyle(payload.Preferences.Style)
	}
	if payload.ConversationID != nil && *payload.ConversationID != "" {
		id, err := uuid.Parse(*payload.ConversationID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid conversation id")
			return service.ChatRequest{}, nil, false
		}
		req.ConversationID = &id
	}

	var user *domain.User
	if userID, ok := middleware.GetUserID(r.Context()); ok {
		loaded, err := h.authService.GetUserByID(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return service.ChatRequest{}, nil, false
		}
		user = loaded
	}

	return req, user, true
}

func (h *ChatHandler) writePrepareError(w http.ResponseWriter, err error) {
	var quotaErr *domain.QuotaError
	switch {
	case errors.Is(err, service.ErrEmptyMessage), errors.Is(err, service.ErrMessageTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &quotaErr):
		// Expected outcome for free-tier users, not an error condition.
		writeJSON(w, http.StatusForbidden, quotaResponse{
			Error:    "Weekly message limit reached",
			Limit:    quotaErr.Limit,
			Used:     quotaErr.Used,
			ResetsAt: quotaErr.ResetsAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	case errors.Is(err, domain.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "Conversation not found")
	case errors.Is(err, domain.ErrCompanionNotConfigured):
		log.Printf("ERROR [ChatHandler] companion config missing")
		writeError(w, http.StatusInternalServerError, "Companion is not configured")
	default:
		log.Printf("ERROR [ChatHandler] %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
