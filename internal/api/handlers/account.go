package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/mira/companion-chat-backend/internal/api/middleware"
	"github.com/mira/companion-chat-backend/internal/domain"
	"github.com/mira/companion-chat-backend/internal/service"
)

type AccountHandler struct {
	accountService *service.AccountService
	quotaService   *service.QuotaService
}

func NewAccountHandler(accountService *service.AccountService, quotaService *service.QuotaService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		quotaService:   quotaService,
	}
}

type preferencesResponse struct {
	ChatName         string `json:"chatName"`
	PersonalityMode  string `json:"personalityMode"`
	GenderPreference string `json:"genderPreference"`
	Length           string `json:"length,omitempty"`
	Style            string `json:"style,omitempty"`
}

func toPreferencesResponse(user *domain.User) preferencesResponse {
	prefs := user.Prefs()
	return preferencesResponse{
		ChatName:         user.ChatName,
		PersonalityMode:  string(user.PersonalityMode),
		GenderPreference: string(user.GenderPreference),
		Length:           string(prefs.Length),
		Style:            string(prefs.Style),
	}
}

func (h *AccountHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.accountService.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	writeJSON(w, http.StatusOK, toPreferencesResponse(user))
}

func (h *AccountHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var update service.PreferencesUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.accountService.UpdatePreferences(r.Context(), userID, update)
	if err != nil {
		log.Printf("ERROR [AccountHandler.UpdatePreferences] %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toPreferencesResponse(user))
}

func (h *AccountHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	used, limit, resetsAt, err := h.quotaService.Usage(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR [AccountHandler.GetQuota] %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"used":     used,
		"limit":    limit,
		"resetsAt": resetsAt,
	})
}
