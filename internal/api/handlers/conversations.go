package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mira/companion-chat-backend/internal/api/middleware"
	"github.com/mira/companion-chat-backend/internal/domain"
	"github.com/mira/companion-chat-backend/internal/repository"
)

type ConversationHandler struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
}

func NewConversationHandler(conversationRepo repository.ConversationRepository, messageRepo repository.MessageRepository) *ConversationHandler {
	return &ConversationHandler{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
	}
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conversations, err := h.conversationRepo.ListByUserID(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR [ConversationHandler.List] %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, conversations)
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conversation, ok := h.ownedConversation(w, r)
	if !ok {
		return
	}

	messages, err := h.messageRepo.ListByConversation(r.Context(), conversation.ID)
	if err != nil {
		log.Printf("ERROR [ConversationHandler.Get] %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversation": conversation,
		"messages":     messages,
	})
}

func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	conversation, ok := h.ownedConversation(w, r)
	if !ok {
		return
	}

	if err := h.conversationRepo.Delete(r.Context(), conversation.ID); err != nil {
		log.Printf("ERROR [ConversationHandler.Delete] %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *ConversationHandler) ownedConversation(w http.ResponseWriter, r *http.Request) (*domain.Conversation, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid conversation id")
		return nil, false
	}

	conversation, err := h.conversationRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "Conversation not found")
			return nil, false
		}
		log.Printf("ERROR [ConversationHandler] %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}
	if conversation.UserID != userID {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return nil, false
	}

	return conversation, true
}
