package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mira/companion-chat-backend/internal/api"
	"github.com/mira/companion-chat-backend/internal/config"
	"github.com/mira/companion-chat-backend/internal/llm"
	"github.com/mira/companion-chat-backend/internal/repository/postgres"
	"github.com/mira/companion-chat-backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Initialize database
	db, err := postgres.NewConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Initialize repositories
	repos := postgres.NewRepositories(db)

	// Initialize LLM backend client
	llmClient := llm.NewClient(cfg.OllamaURL, cfg.RequestTimeout)

	// Initialize services
	services := service.NewServices(repos, llmClient, cfg)

	// Seed the companion configuration row if this is a fresh database
	if err := services.Companion.SeedDefault(context.Background()); err != nil {
		log.Fatalf("failed to seed companion config: %v", err)
	}

	// Initialize router
	router := api.NewRouter(services, repos, llmClient)

	// Create server. WriteTimeout is generous because chat responses
	// stream for as long as the model generates.
	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
