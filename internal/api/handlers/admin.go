package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mira/companion-chat-backend/internal/api/middleware"
	"github.com/mira/companion-chat-backend/internal/domain"
	"github.com/mira/companion-chat-backend/internal/llm"
	"github.com/mira/companion-chat-backend/internal/service"
)

type AdminHandler struct {
	companionService *service.CompanionService
	accountService   *service.AccountService
	llmClient        *llm.Client
}

func NewAdminHandler(companionService *service.CompanionService, accountService *service.AccountService, llmClient *llm.Client) *AdminHandler {
	return &AdminHandler{
		companionService: companionService,
		accountService:   accountService,
		llmClient:        llmClient,
	}
}

// DeleteUser removes an account and cascades its conversations,
// messages and sessions.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	if err := h.accountService.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("ERROR [AdminHandler.DeleteUser] %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AdminHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	config, err := h.companionService.GetConfig(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrCompanionNotConfigured) {
			writeError(w, http.StatusNotFound, "Companion is not configured")
			return
		}
		log.Printf("ERROR [AdminHandler.GetConfig] %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, config)
}

func (h *AdminHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var update service.ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	config, err := h.companionService.UpdateConfig(r.Context(), update)
	if err != nil {
		if errors.Is(err, domain.ErrCompanionNotConfigured) {
			writeError(w, http.StatusNotFound, "Companion is not configured")
			return
		}
		log.Printf("ERROR [AdminHandler.UpdateConfig] %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, config)
}

type createPromptRequest struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	Activate bool   `json:"activate"`
}

func (h *AdminHandler) ListPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.companionService.ListPrompts(r.Context())
	if err != nil {
		log.Printf("ERROR [AdminHandler.ListPrompts] %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, prompts)
}

func (h *AdminHandler) CreatePrompt(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req createPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "Name and content are required")
		return
	}

	prompt, err := h.companionService.CreatePrompt(r.Context(), service.CreatePromptInput{
		Name:      req.Name,
		Content:   req.Content,
		CreatedBy: userID,
		Activate:  req.Activate,
	})
	if err != nil {
		log.Printf("ERROR [AdminHandler.CreatePrompt] %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, prompt)
}

func (h *AdminHandler) ActivatePrompt(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid prompt id")
		return
	}

	if err := h.companionService.ActivatePrompt(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrPromptNotFound) {
			writeError(w, http.StatusNotFound, "Prompt not found")
			return
		}
		log.Printf("ERROR [AdminHandler.ActivatePrompt] %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AdminHandler) DeletePrompt(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid prompt id")
		return
	}

	if err := h.companionService.DeletePrompt(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrPromptNotFound) {
			writeError(w, http.StatusNotFound, "Prompt not found")
			return
		}
		log.Printf("ERROR [AdminHandler.DeletePrompt] %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// LLMHealth probes backend connectivity and lists available models.
// Diagnostic endpoint, not part of the request-serving path.
func (h *AdminHandler) LLMHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.llmClient.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"reachable": false,
			"error":     err.Error(),
		})
		return
	}

	models, err := h.llmClient.ListModels(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"reachable": true,
			"error":     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reachable": true,
		"models":    models,
	})
}
