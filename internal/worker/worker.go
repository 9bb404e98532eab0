package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jwebster45206/story-arbiter/internal/engine"
	"github.com/jwebster45206/story-arbiter/internal/logger"
	"github.com/jwebster45206/story-arbiter/internal/services/events"
	"github.com/jwebster45206/story-arbiter/internal/services/queue"
	"github.com/jwebster45206/story-arbiter/internal/storage"
	queuePkg "github.com/jwebster45206/story-arbiter/pkg/queue"
)

const (
	dequeueTimeout = 5 * time.Second
	errorBackoff   = 1 * time.Second
	requeueBackoff = 100 * time.Millisecond

	// DefaultTurnTimeout bounds one turn
	DefaultTurnTimeout = 60 * time.Second
)

// Processor runs one turn
type Processor interface {
	Process(ctx context.Context, req *queuePkg.TurnRequest) (*engine.TurnResult, error)
}

// Locker takes a per-session lock without waiting
type Locker interface {
	TryLock(ctx context.Context, key string) (func(), error)
}

// Worker processes turns from the queue with a fixed number of goroutines.
// A session is processed by at most one goroutine across all workers at a time.
type Worker struct {
	id          string
	concurrency int
	queue       *queue.TurnQueue
	processor   Processor
	broadcaster *events.Broadcaster
	locker      Locker
	turnTimeout time.Duration
	log         *slog.Logger
}

// New creates a new worker instance
func New(
	turnQueue *queue.TurnQueue,
	processor Processor,
	broadcaster *events.Broadcaster,
	locker Locker,
	log *slog.Logger,
	workerID string,
	concurrency int,
) *Worker {
	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		id:          workerID,
		concurrency: concurrency,
		queue:       turnQueue,
		processor:   processor,
		broadcaster: broadcaster,
		locker:      locker,
		turnTimeout: DefaultTurnTimeout,
		log:         log.With("worker_id", workerID),
	}
}

// SetTurnTimeout bounds each turn so it finishes before the session lock
// expires. Non-positive values are ignored.
func (w *Worker) SetTurnTimeout(d time.Duration) {
	if d > 0 {
		w.turnTimeout = d
	}
}

// ID returns the worker's identifier
func (w *Worker) ID() string {
	return w.id
}

// Run processes requests until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Worker starting", "concurrency", w.concurrency)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		slot := i
		g.Go(func() error {
			return w.loop(ctx, slot)
		})
	}

	err := g.Wait()
	w.log.Info("Worker shut down")
	return err
}

func (w *Worker) loop(ctx context.Context, slot int) error {
	log := w.log.With("slot", slot)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := w.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("Error processing request", "error", err)
			// Continue processing even on error
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(errorBackoff):
			}
		}
	}
}

// ProcessNext pulls one request from the queue and processes it. It returns
// nil when the queue stays empty for the dequeue timeout.
func (w *Worker) ProcessNext(ctx context.Context) error {
	req, err := w.queue.BlockingDequeue(ctx, dequeueTimeout)
	if err != nil {
		return err
	}
	if req == nil {
		return nil
	}

	log := logger.WithSession(logger.WithRequestID(w.log, req.RequestID), req.SessionID)
	log.Info("Received request from queue")

	unlock, err := w.locker.TryLock(ctx, req.SessionID)
	if errors.Is(err, storage.ErrLockHeld) {
		// Another goroutine owns this session; put the turn back and move on
		log.Info("Session already locked, re-queueing request")
		if err := w.queue.Enqueue(ctx, req); err != nil {
			return fmt.Errorf("failed to re-queue request: %w", err)
		}
		select {
		case <-ctx.Done():
		case <-time.After(requeueBackoff):
		}
		return nil
	}
	if err != nil {
		if qerr := w.queue.Enqueue(ctx, req); qerr != nil {
			log.Error("Failed to re-queue request", "error", qerr)
		}
		return fmt.Errorf("failed to acquire session lock: %w", err)
	}
	defer unlock()

	return w.processRequest(ctx, log, req)
}

func (w *Worker) processRequest(ctx context.Context, log *slog.Logger, req *queuePkg.TurnRequest) error {
	if err := w.broadcaster.PublishTurnProcessing(ctx, req.SessionID, req.RequestID, req.Message); err != nil {
		// Don't fail the request just because event publishing failed
		log.Error("Failed to publish processing event", "error", err)
	}

	turnCtx, cancel := context.WithTimeout(ctx, w.turnTimeout)
	defer cancel()
	result, err := w.processor.Process(turnCtx, req)
	if err != nil {
		logger.WithError(log, err).Error("Failed to process turn")
		if pubErr := w.broadcaster.PublishTurnFailed(ctx, req.SessionID, req.RequestID, engine.GenericFailureMessage); pubErr != nil {
			log.Error("Failed to publish failure event", "error", pubErr)
		}
		return fmt.Errorf("failed to process turn: %w", err)
	}

	var pubErr error
	switch result.Status {
	case engine.StatusCompleted:
		pubErr = w.broadcaster.PublishTurnCompleted(ctx, req.SessionID, req.RequestID, map[string]any{
			"narration":   result.Narration,
			"intent":      result.Outcome.Intent,
			"story":       result.Story,
			"scene":       result.Scene,
			"compression": result.Compression,
			"duration_ms": result.DurationMS,
		})
	case engine.StatusRejected:
		pubErr = w.broadcaster.PublishTurnRejected(ctx, req.SessionID, req.RequestID, result.PlayerMessage)
	default:
		pubErr = w.broadcaster.PublishTurnFailed(ctx, req.SessionID, req.RequestID, result.PlayerMessage)
	}
	if pubErr != nil {
		log.Error("Failed to publish result event", "error", pubErr)
	}

	log.Info("Turn request handled", "status", result.Status, "duration_ms", result.DurationMS)
	return nil
}
