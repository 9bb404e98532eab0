package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/story-arbiter/internal/config"
	"github.com/jwebster45206/story-arbiter/internal/engine"
	"github.com/jwebster45206/story-arbiter/internal/logger"
	"github.com/jwebster45206/story-arbiter/internal/services"
	"github.com/jwebster45206/story-arbiter/internal/services/events"
	"github.com/jwebster45206/story-arbiter/internal/services/queue"
	"github.com/jwebster45206/story-arbiter/internal/storage"
	"github.com/jwebster45206/story-arbiter/internal/worker"
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

	log.Info("Starting Story Arbiter Worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL,
		"worker_count", cfg.WorkerCount)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, startCancel := context.WithTimeout(ctx, 2*time.Minute)
	defer startCancel()
	queueClient, err := queue.NewClient(startCtx, cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()
	redisClient := queueClient.GetRedisClient()

	sessions := storage.NewRedisSessionStore(redisClient, storage.DefaultSessionTTL, log)
	mem := memory.NewManager(sessions,
		memory.WithMaxHistory(cfg.MaxHistory),
		memory.WithLocker(storage.NewRedisLocker(redisClient, storage.HistoryLockPrefix, 10*time.Second, log)),
		memory.WithLogger(log))
	characters := storage.NewFileCharacterGateway(cfg.DataDir, log)

	classifier, err := services.NewClassifier(cfg)
	if err != nil {
		log.Error("Failed to create classifier", "error", err)
		os.Exit(1)
	}
	r := router.New(classifier, validation.NewDefaultRegistry(characters, log),
		router.WithThreshold(cfg.ConfidenceThreshold),
		router.WithLogger(log))

	var narrator services.Narrator
	if cfg.NarratorEnabled() {
		narrator = services.NewOpenAINarrator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.NarratorModel)
	}

	// The worker holds the session lock itself, so the processor runs unlocked
	processor := engine.NewTurnProcessor(r, mem, sessions, characters, narrator, cfg.PromptTokenBudget, log)

	w := worker.New(
		queue.NewTurnQueue(queueClient),
		processor,
		events.NewBroadcaster(redisClient, log),
		storage.NewRedisLocker(redisClient, storage.SessionLockPrefix, cfg.SessionLockTTL, log),
		log,
		cfg.WorkerID,
		cfg.WorkerCount,
	)
	w.SetTurnTimeout(cfg.TurnTimeout)

	log.Info("Worker started, waiting for turns...", "worker_id", w.ID())
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Worker error", "error", err)
		os.Exit(1)
	}

	log.Info("Worker exited")
}
