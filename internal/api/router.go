package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/mira/companion-chat-backend/internal/api/handlers"
	"github.com/mira/companion-chat-backend/internal/api/middleware"
	"github.com/mira/companion-chat-backend/internal/llm"
	"github.com/mira/companion-chat-backend/internal/repository"
	"github.com/mira/companion-chat-backend/internal/service"
)

func NewRouter(services *service.Services, repos *repository.Repositories, llmClient *llm.Client) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.CORS)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(services.Auth)
	chatHandler := handlers.NewChatHandler(services.Chat, services.Companion, services.Auth)
	accountHandler := handlers.NewAccountHandler(services.Account, services.Quota)
	conversationHandler := handlers.NewConversationHandler(repos.Conversation, repos.Message)
	adminHandler := handlers.NewAdminHandler(services.Companion, services.Account, llmClient)

	r.Route("/api", func(r chi.Router) {
		// Auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(services.Auth))
				r.Get("/me", authHandler.Me)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// Chat routes serve both anonymous and authenticated users
		r.Route("/chat", func(r chi.Router) {
			r.Get("/config", chatHandler.GetConfig)

			r.Group(func(r chi.Router) {
				r.Use(middleware.OptionalAuth(services.Auth))
				r.Post("/", chatHandler.Stream)
				r.Post("/non-streaming", chatHandler.NonStreaming)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(services.Auth))

			r.Route("/account", func(r chi.Router) {
				r.Get("/preferences", accountHandler.GetPreferences)
				r.Put("/preferences", accountHandler.UpdatePreferences)
				r.Get("/quota", accountHandler.GetQuota)
			})

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", conversationHandler.List)
				r.Get("/{id}", conversationHandler.Get)
				r.Delete("/{id}", conversationHandler.Delete)
			})

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.Admin)

				r.Get("/companion", adminHandler.GetConfig)
				r.Put("/companion", adminHandler.UpdateConfig)

				r.Route("/prompts", func(r chi.Router) {
					r.Get("/", adminHandler.ListPrompts)
					r.Post("/", adminHandler.CreatePrompt)
					r.Post("/{id}/activate", adminHandler.ActivatePrompt)
					r.Delete("/{id}", adminHandler.DeletePrompt)
				})

				r.Delete("/users/{id}", adminHandler.DeleteUser)

				r.Get("/llm/health", adminHandler.LLMHealth)
			})
		})
	})

	return r
}
