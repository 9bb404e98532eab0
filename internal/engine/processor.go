// Package engine runs one player turn end to end: route, record, compress, narrate.
// It is used by the HTTP handler (synchronously) and the worker (asynchronously).
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/story-arbiter/internal/logger"
	"github.com/jwebster45206/story-arbiter/internal/metrics"
	"github.com/jwebster45206/story-arbiter/internal/services"
	"github.com/jwebster45206/story-arbiter/pkg/character"
	"github.com/jwebster45206/story-arbiter/pkg/memory"
	"github.com/jwebster45206/story-arbiter/pkg/narrative"
	"github.com/jwebster45206/story-arbiter/pkg/queue"
	"github.com/jwebster45206/story-arbiter/pkg/router"
	"github.com/jwebster45206/story-arbiter/pkg/session"
	"github.com/jwebster45206/story-arbiter/pkg/validation"
)

const DefaultTokenBudget = 1500

// GenericFailureMessage replaces internal diagnostics in player-facing text
const GenericFailureMessage = "Something went wrong. Please try again."

var ErrInvalidRequest = errors.New("invalid turn request")

// Status is the overall result of a turn
type Status string

const (
	StatusCompleted Status = metrics.OutcomeCompleted
	StatusRejected  Status = metrics.OutcomeRejected
	StatusFailed    Status = metrics.OutcomeFailed
)

// TurnResult is what a processed turn reports back to the caller
type TurnResult struct {
	RequestID string         `json:"request_id,omitempty"`
	SessionID string         `json:"session_id"`
	Status    Status         `json:"status"`
	Outcome   router.Outcome `json:"outcome"`

	// PlayerMessage is safe to show the player when the turn did not proceed
	PlayerMessage string `json:"player_message,omitempty"`
	Narration     string `json:"narration,omitempty"`

	Story       string `json:"story"`
	Scene       string `json:"scene"`
	Compression string `json:"compression,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
}

// TurnProcessor wires the router, working memory and narrator together
type TurnProcessor struct {
	router      *router.Router
	memory      *memory.Manager
	sessions    session.Store
	characters  character.Gateway
	narrator    services.Narrator
	tokenBudget int
	logger      *slog.Logger

	// sessionLock serializes turns per session when set
	sessionLock memory.Locker
}

// NewTurnProcessor creates a processor. A nil narrator skips generation;
// the turn is still routed and recorded.
func NewTurnProcessor(
	r *router.Router,
	mem *memory.Manager,
	sessions session.Store,
	characters character.Gateway,
	narrator services.Narrator,
	tokenBudget int,
	logger *slog.Logger,
) *TurnProcessor {
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnProcessor{
		router:      r,
		memory:      mem,
		sessions:    sessions,
		characters:  characters,
		narrator:    narrator,
		tokenBudget: tokenBudget,
		logger:      logger,
	}
}

// SetSessionLocker makes Process hold a per-session lock for the whole turn.
// Leave it unset when the caller already holds the session lock.
func (p *TurnProcessor) SetSessionLocker(l memory.Locker) {
	p.sessionLock = l
}

// Process runs one turn. A rejected action is a result, not an error; errors
// are returned only for bad requests and store or narrator faults.
func (p *TurnProcessor) Process(ctx context.Context, req *queue.TurnRequest) (*TurnResult, error) {
	start := time.Now()
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}
	log := logger.WithRequestID(logger.WithSession(p.logger, req.SessionID), req.RequestID)

	if p.sessionLock != nil {
		unlock, err := p.sessionLock.Lock(ctx, req.SessionID)
		if err != nil {
			metrics.TurnProcessed(metrics.OutcomeFailed)
			return nil, fmt.Errorf("lock session: %w", err)
		}
		defer unlock()
	}

	sess, err := p.ensureSession(ctx, req.SessionID, req.CharacterID)
	if err != nil {
		metrics.TurnProcessed(metrics.OutcomeFailed)
		return nil, err
	}
	characterID := req.CharacterID
	if characterID == "" {
		characterID = sess.CharacterID
	}

	scene := narrative.DetectScene(sess.Scene, req.Message)
	story := sess.Story
	if story == "" {
		story = narrative.StoryIntro
	}

	outcome := p.router.Process(ctx, req.Message, router.RouteContext{
		SessionID:   req.SessionID,
		CharacterID: characterID,
		GameState:   scene,
		Params:      req.Params,
	})
	metrics.IntentRouted(outcome.Intent.String(), outcome.FallbackReason)
	log.Debug("Routed player input",
		"intent", outcome.Intent,
		"raw_intent", outcome.RawIntent,
		"confidence", outcome.Confidence,
		"fallback", outcome.FallbackReason,
		"proceed", outcome.Proceed)

	result := &TurnResult{
		RequestID: req.RequestID,
		SessionID: req.SessionID,
		Outcome:   outcome,
		Story:     story,
		Scene:     scene,
	}

	if !outcome.Proceed {
		if outcome.Kind != "" {
			metrics.ValidationFailed(string(outcome.Kind))
		}
		result.Status = StatusRejected
		if outcome.Kind == validation.KindInternalError || outcome.Kind == validation.KindNotFound {
			result.Status = StatusFailed
			log.Warn("Turn failed before narration", "kind", outcome.Kind, "message", outcome.Message)
		}
		result.PlayerMessage = PlayerMessage(outcome)
		metrics.TurnProcessed(string(result.Status))
		result.DurationMS = time.Since(start).Milliseconds()
		return result, nil
	}

	playerEntry := playerEntryFor(req)
	if err := p.memory.AppendEntry(ctx, req.SessionID, playerEntry); err != nil {
		metrics.TurnProcessed(metrics.OutcomeFailed)
		return nil, fmt.Errorf("failed to record player message: %w", err)
	}

	result.Story = narrative.AdvanceStory(story, req.Message)
	if err := p.sessions.SetTags(ctx, req.SessionID, result.Story, scene); err != nil {
		log.Error("Failed to save narrative tags", "error", err)
	}

	compression, err := p.memory.Compress(ctx, req.SessionID, p.tokenBudget)
	if err != nil {
		metrics.TurnProcessed(metrics.OutcomeFailed)
		return nil, fmt.Errorf("failed to compress history: %w", err)
	}
	metrics.Compressed(compression.Strategy)
	result.Compression = compression.Strategy

	if p.narrator != nil {
		narration, err := p.narrate(ctx, log, characterID, outcome, compression.Entries, playerEntry, result)
		if err != nil {
			metrics.TurnProcessed(metrics.OutcomeFailed)
			result.Status = StatusFailed
			result.PlayerMessage = GenericFailureMessage
			result.DurationMS = time.Since(start).Milliseconds()
			return result, err
		}
		result.Narration = narration
	}

	result.Status = StatusCompleted
	metrics.TurnProcessed(metrics.OutcomeCompleted)
	result.DurationMS = time.Since(start).Milliseconds()
	log.Info("Turn processed",
		"intent", outcome.Intent,
		"story", result.Story,
		"scene", scene,
		"compression", compression.Strategy,
		"duration_ms", result.DurationMS)
	return result, nil
}

func (p *TurnProcessor) narrate(
	ctx context.Context,
	log *slog.Logger,
	characterID string,
	outcome router.Outcome,
	history []session.Entry,
	playerEntry session.Entry,
	result *TurnResult,
) (string, error) {
	// The player's message is sent separately from history
	if n := len(history); n > 0 && history[n-1].SameTurn(playerEntry) {
		history = history[:n-1]
	}

	messages, err := narrative.NewBuilder().
		WithCharacter(p.snapshot(ctx, log, characterID)).
		WithOutcome(outcome).
		WithHistory(history).
		WithTags(result.Story, result.Scene).
		WithUserMessage(playerEntry.Message).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build prompt: %w", err)
	}

	narration, err := p.narrator.Narrate(ctx, messages)
	if err != nil {
		log.Error("Narrator failed", "error", err)
		return "", fmt.Errorf("failed to generate narration: %w", err)
	}

	if _, err := p.memory.AppendMessage(ctx, result.SessionID, session.SenderNarrator, narration); err != nil {
		return "", fmt.Errorf("failed to record narration: %w", err)
	}
	return narration, nil
}

// snapshot loads the character for the prompt. A missing sheet is not fatal here.
func (p *TurnProcessor) snapshot(ctx context.Context, log *slog.Logger, characterID string) *character.Character {
	if characterID == "" || p.characters == nil {
		return nil
	}
	c, err := p.characters.GetCharacter(ctx, characterID)
	if err != nil {
		log.Warn("Character unavailable for prompt", "character_id", characterID, "error", err)
		return nil
	}
	return c
}

// ensureSession loads the session, creating it on the first message
func (p *TurnProcessor) ensureSession(ctx context.Context, sessionID, characterID string) (*session.Session, error) {
	sess, err := p.sessions.Get(ctx, sessionID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, session.ErrNotFound) {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	sess = session.New(sessionID, characterID)
	sess.Story = narrative.StoryIntro
	sess.Scene = narrative.SceneIntro
	if err := p.sessions.Create(ctx, sess); err != nil {
		if errors.Is(err, session.ErrExists) {
			return p.sessions.Get(ctx, sessionID)
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	p.logger.Info("Session created", "session_id", sessionID, "character_id", characterID)
	return sess, nil
}

// playerEntryFor builds a deterministic entry so a retried request is not recorded twice
func playerEntryFor(req *queue.TurnRequest) session.Entry {
	e := session.NewEntry(session.SenderPlayer, req.Message)
	if req.MessageID != "" {
		e.ID = req.MessageID
	}
	if !req.EnqueuedAt.IsZero() {
		e.Timestamp = req.EnqueuedAt.UTC()
	}
	return e
}

// PlayerMessage is the text to show the player for an outcome that did not
// proceed. Rule violations are shown verbatim; faults get a generic message.
func PlayerMessage(o router.Outcome) string {
	if o.Proceed {
		return ""
	}
	switch o.Kind {
	case validation.KindInvalidAction:
		return o.Message
	case validation.KindNotFound, validation.KindInternalError:
		return GenericFailureMessage
	}
	if o.Message != "" {
		return o.Message
	}
	return GenericFailureMessage
}
