// Package router classifies player input, gates it through the validator
// registered for its intent, and dispatches it to a handler.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/jwebster45206/story-arbiter/pkg/intent"
	"github.com/jwebster45206/story-arbiter/pkg/validation"
)

// DefaultConfidenceThreshold is the minimum confidence to trust a classifier label
const DefaultConfidenceThreshold = 0.8

// Reasons a classified label was replaced with GENERAL
const (
	FallbackClassifierError = "classifier_error"
	FallbackLowConfidence   = "low_confidence"
	FallbackUnknownLabel    = "unknown_label"
)

// RouteContext carries the caller's knowledge of who is acting and where
type RouteContext struct {
	SessionID   string            `json:"session_id,omitempty"`
	CharacterID string            `json:"character_id,omitempty"`
	GameState   string            `json:"game_state,omitempty"`
	Params      validation.Params `json:"params,omitempty"`
}

// Payload is what a handler receives
type Payload struct {
	Text       string        `json:"text"`
	Intent     intent.Intent `json:"intent"`
	Confidence float64       `json:"confidence"`
	Context    RouteContext  `json:"context"`
}

// Outcome is the single result shape of Process.
// Proceed means the turn may continue to narration.
type Outcome struct {
	Success        bool               `json:"success"`
	Proceed        bool               `json:"proceed"`
	Message        string             `json:"message,omitempty"`
	Kind           validation.Kind    `json:"kind,omitempty"`
	Intent         intent.Intent      `json:"intent"`
	RawIntent      string             `json:"raw_intent,omitempty"`
	Confidence     float64            `json:"confidence"`
	FallbackReason string             `json:"fallback_reason,omitempty"`
	Validation     *validation.Result `json:"validation,omitempty"`
	Payload        Payload            `json:"payload"`
}

// Handler acts on a validated payload
type Handler interface {
	Handle(ctx context.Context, p Payload) (Outcome, error)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, p Payload) (Outcome, error)

func (f HandlerFunc) Handle(ctx context.Context, p Payload) (Outcome, error) {
	return f(ctx, p)
}

// PassThrough is the default handler: it lets the turn proceed unchanged
var PassThrough = HandlerFunc(func(ctx context.Context, p Payload) (Outcome, error) {
	return Outcome{Success: true, Proceed: true, Payload: p}, nil
})

// Router routes player input by intent
type Router struct {
	classifier intent.Classifier
	validators *validation.Registry
	threshold  float64
	logger     *slog.Logger

	mu       sync.RWMutex
	handlers map[intent.Intent]Handler
}

// Option configures a Router
type Option func(*Router)

// WithThreshold overrides the confidence threshold
func WithThreshold(threshold float64) Option {
	return func(r *Router) {
		r.threshold = threshold
	}
}

// WithLogger sets the router's logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// New creates a router with a pass-through handler for every intent.
// A nil registry means no intent is validated.
func New(classifier intent.Classifier, validators *validation.Registry, opts ...Option) *Router {
	if validators == nil {
		validators = validation.NewRegistry()
	}
	r := &Router{
		classifier: classifier,
		validators: validators,
		threshold:  DefaultConfidenceThreshold,
		logger:     slog.Default(),
		handlers:   make(map[intent.Intent]Handler, len(intent.All)),
	}
	for _, i := range intent.All {
		r.handlers[i] = PassThrough
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetHandler replaces the handler for i. A nil handler restores the pass-through default.
func (r *Router) SetHandler(i intent.Intent, h Handler) {
	if h == nil {
		h = PassThrough
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[i] = h
}

// SetValidator replaces the validator for i. A nil validator removes it.
func (r *Router) SetValidator(i intent.Intent, v validation.Validator) {
	r.validators.Register(i, v)
}

// Threshold returns the configured confidence threshold
func (r *Router) Threshold() float64 {
	return r.threshold
}

func (r *Router) handler(i intent.Intent) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[i]; ok {
		return h
	}
	return r.handlers[intent.General]
}

// Process classifies text, validates it if a validator is registered for its
// intent, and runs the intent's handler. It always returns an Outcome.
func (r *Router) Process(ctx context.Context, text string, rc RouteContext) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Router panicked", "session_id", rc.SessionID, "panic", rec)
			out = errorOutcome(fmt.Errorf("%v", rec), out)
		}
	}()

	label, raw, confidence, fallback := r.classify(ctx, text)
	payload := Payload{Text: text, Intent: label, Confidence: confidence, Context: rc}
	base := Outcome{
		Intent:         label,
		RawIntent:      raw,
		Confidence:     confidence,
		FallbackReason: fallback,
		Payload:        payload,
	}

	if v, ok := r.validators.Get(label); ok {
		res := v.Validate(ctx, validation.Request{
			CharacterID: rc.CharacterID,
			Params:      rc.Params,
			GameState:   rc.GameState,
		})
		if !res.Status {
			r.logger.Debug("Validation rejected input", "intent", label, "reason", res.Reason, "kind", res.Kind)
			out := base
			out.Message = res.Reason
			out.Kind = res.Kind
			out.Validation = &res
			return out
		}
		base.Validation = &res
	}

	result, err := r.handler(label).Handle(ctx, payload)
	if err != nil {
		r.logger.Error("Handler failed", "intent", label, "error", err)
		return errorOutcome(err, base)
	}

	// Handlers report only what they decide; routing metadata is filled in here
	result.Intent = label
	result.RawIntent = raw
	result.Confidence = confidence
	result.FallbackReason = fallback
	if result.Validation == nil {
		result.Validation = base.Validation
	}
	if result.Payload.Text == "" && result.Payload.Intent == "" {
		result.Payload = payload
	}
	return result
}

// classify returns the effective label, the raw label, the confidence, and
// why the raw label was replaced, if it was.
func (r *Router) classify(ctx context.Context, text string) (intent.Intent, string, float64, string) {
	if r.classifier == nil {
		return intent.General, "", 0, FallbackClassifierError
	}

	c, err := r.classifier.Classify(ctx, text)
	if err != nil {
		r.logger.Warn("Classifier failed, defaulting to GENERAL", "error", err)
		return intent.General, "", 0, FallbackClassifierError
	}

	raw := string(c.Intent)
	if math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1 {
		r.logger.Warn("Classifier returned invalid confidence, defaulting to GENERAL", "intent", raw, "confidence", c.Confidence)
		return intent.General, raw, 0, FallbackClassifierError
	}
	if c.Confidence < r.threshold {
		return intent.General, raw, c.Confidence, FallbackLowConfidence
	}
	if !c.Intent.IsValid() {
		return intent.General, raw, c.Confidence, FallbackUnknownLabel
	}
	return c.Intent, raw, c.Confidence, ""
}

func errorOutcome(err error, base Outcome) Outcome {
	base.Success = false
	base.Proceed = false
	base.Message = fmt.Sprintf("Error processing input: %s", err.Error())
	base.Kind = validation.KindInternalError
	return base
}
