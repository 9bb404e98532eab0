package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwebster45206/story-arbiter/internal/config"
	"github.com/jwebster45206/story-arbiter/internal/engine"
	"github.com/jwebster45206/story-arbiter/internal/handlers"
	"github.com/jwebster45206/story-arbiter/internal/logger"
	"github.com/jwebster45206/story-arbiter/internal/services"
	"github.com/jwebster45206/story-arbiter/internal/services/events"
	"github.com/jwebster45206/story-arbiter/internal/services/queue"
	"github.com/jwebster45206/story-arbiter/internal/storage"
	"github.com/jwebster45206/story-arbiter/pkg/memory"
	"github.com/jwebster45206/story-arbiter/pkg/router"
	"github.com/jwebster45206/story-arbiter/pkg/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Story Arbiter API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"classifier_provider", cfg.ClassifierProvider,
		"narrator_enabled", cfg.NarratorEnabled())

	redisClient, err := queue.Dial(cfg.RedisURL)
	if err != nil {
		log.Error("Invalid Redis URL", "error", err)
		os.Exit(1)
	}
	redisService := services.NewRedisService(redisClient, log)
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := redisService.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Redis connection established successfully")

	sessions := storage.NewRedisSessionStore(redisClient, storage.DefaultSessionTTL, log)
	mem := memory.NewManager(sessions,
		memory.WithMaxHistory(cfg.MaxHistory),
		memory.WithLocker(storage.NewRedisLocker(redisClient, storage.HistoryLockPrefix, 10*time.Second, log)),
		memory.WithLogger(log))

	characters := storage.NewFileCharacterGateway(cfg.DataDir, log)
	validators := validation.NewDefaultRegistry(characters, log)

	classifier, err := services.NewClassifier(cfg)
	if err != nil {
		log.Error("Failed to create classifier", "error", err)
		os.Exit(1)
	}
	r := router.New(classifier, validators,
		router.WithThreshold(cfg.ConfidenceThreshold),
		router.WithLogger(log))

	var narrator services.Narrator
	if cfg.NarratorEnabled() {
		narrator = services.NewOpenAINarrator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.NarratorModel)
		log.Info("Narration enabled", "model", cfg.NarratorModel)
	}

	processor := engine.NewTurnProcessor(r, mem, sessions, characters, narrator, cfg.PromptTokenBudget, log)
	// Inline turns take the same lock the workers do
	processor.SetSessionLocker(storage.NewRedisLocker(redisClient, storage.SessionLockPrefix, cfg.SessionLockTTL, log))

	turnQueue := queue.NewTurnQueue(queue.NewClientFromRedis(redisClient, log))
	broadcaster := events.NewBroadcaster(redisClient, log)

	mux := http.NewServeMux()
	mux.Handle("GET /health", handlers.NewHealthHandler(redisService, log))
	mux.Handle("GET /metrics", promhttp.Handler())
	turns := handlers.NewTurnsHandler(processor, turnQueue, broadcaster, log)
	turns.SetTimeout(cfg.TurnTimeout)
	mux.Handle("POST /v1/turns", turns)
	handlers.NewSessionsHandler(mem, sessions, cfg.PromptTokenBudget, log).Register(mux)
	handlers.NewCharacterHandler(log, characters, characters).Register(mux)
	handlers.NewEventsHandler(redisClient, log).Register(mux)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handlers.Logger(log, mux),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the event stream holds connections open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := redisService.Close(); err != nil {
		log.Error("Error closing Redis connection", "error", err)
	}

	log.Info("Server exited")
}
