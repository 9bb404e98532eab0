package router

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-arbiter/pkg/intent"
	"github.com/jwebster45206/story-arbiter/pkg/validation"
)

// recordingHandler counts invocations
type recordingHandler struct {
	calls int
	out   Outcome
	err   error
}

func (h *recordingHandler) Handle(ctx context.Context, p Payload) (Outcome, error) {
	h.calls++
	if h.err != nil {
		return Outcome{}, h.err
	}
	out := h.out
	out.Payload = p
	return out, nil
}

func failing(reason string) validation.Validator {
	return validation.ValidatorFunc(func(ctx context.Context, req validation.Request) validation.Result {
		return validation.Fail(reason, nil)
	})
}

func TestProcess_ValidationFailureHaltsRouting(t *testing.T) {
	registry := validation.NewRegistry()
	registry.Register(intent.Combat, failing("You have no ammunition for your Shortbow"))
	r := New(intent.NewMockClassifier(intent.Combat, 0.95), registry)

	combat := &recordingHandler{out: Outcome{Success: true, Proceed: true}}
	r.SetHandler(intent.Combat, combat)

	out := r.Process(context.Background(), "I shoot the orc", RouteContext{CharacterID: "vex"})

	assert.False(t, out.Success)
	assert.False(t, out.Proceed)
	assert.Equal(t, "You have no ammunition for your Shortbow", out.Message)
	assert.Equal(t, validation.KindInvalidAction, out.Kind)
	require.NotNil(t, out.Validation)
	assert.False(t, out.Validation.Status)
	assert.Equal(t, intent.Combat, out.Intent)
	assert.Equal(t, 0, combat.calls)
}

func TestProcess_LowConfidenceFallsBackToGeneral(t *testing.T) {
	registry := validation.NewRegistry()
	registry.Register(intent.Combat, failing("should not run"))
	r := New(intent.NewMockClassifier(intent.Combat, 0.4), registry)

	general := &recordingHandler{out: Outcome{Success: true, Proceed: true}}
	r.SetHandler(intent.General, general)

	out := r.Process(context.Background(), "maybe swing?", RouteContext{})

	assert.True(t, out.Success)
	assert.True(t, out.Proceed)
	assert.Equal(t, intent.General, out.Intent)
	assert.Equal(t, "COMBAT", out.RawIntent)
	assert.Equal(t, 0.4, out.Confidence)
	assert.Equal(t, FallbackLowConfidence, out.FallbackReason)
	assert.Equal(t, intent.General, out.Payload.Intent)
	assert.Equal(t, 1, general.calls)
}

func TestProcess_ThresholdIsInclusive(t *testing.T) {
	r := New(intent.NewMockClassifier(intent.Recall, DefaultConfidenceThreshold), nil)

	out := r.Process(context.Background(), "what happened", RouteContext{})
	assert.Equal(t, intent.Recall, out.Intent)
	assert.Empty(t, out.FallbackReason)
}

func TestProcess_ClassifierErrorFallsBackToGeneral(t *testing.T) {
	classifier := &intent.MockClassifier{
		ClassifyFunc: func(ctx context.Context, text string) (intent.Classification, error) {
			return intent.Classification{}, errors.New("model offline")
		},
	}
	r := New(classifier, nil)

	out := r.Process(context.Background(), "hello", RouteContext{})
	assert.True(t, out.Success)
	assert.True(t, out.Proceed)
	assert.Equal(t, intent.General, out.Intent)
	assert.Equal(t, FallbackClassifierError, out.FallbackReason)
}

func TestProcess_InvalidConfidenceFallsBackToGeneral(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
	}{
		{"NaN", math.NaN()},
		{"positive infinity", math.Inf(1)},
		{"above one", 1.5},
		{"negative", -0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := validation.NewRegistry()
			registry.Register(intent.Combat, failing("should not run"))
			r := New(intent.NewMockClassifier(intent.Combat, tt.confidence), registry)

			out := r.Process(context.Background(), "I swing", RouteContext{})
			assert.True(t, out.Proceed)
			assert.Equal(t, intent.General, out.Intent)
			assert.Equal(t, "COMBAT", out.RawIntent)
			assert.Equal(t, FallbackClassifierError, out.FallbackReason)
			assert.Zero(t, out.Confidence)

			_, err := json.Marshal(out)
			assert.NoError(t, err, "outcome stays encodable")
		})
	}
}

func TestProcess_UnknownLabelFallsBackToGeneral(t *testing.T) {
	r := New(intent.NewMockClassifier(intent.Intent("DANCE"), 0.99), nil)

	out := r.Process(context.Background(), "I dance", RouteContext{})
	assert.Equal(t, intent.General, out.Intent)
	assert.Equal(t, "DANCE", out.RawIntent)
	assert.Equal(t, FallbackUnknownLabel, out.FallbackReason)
	assert.True(t, out.Proceed)
}

func TestProcess_DefaultHandlerPassesThrough(t *testing.T) {
	r := New(intent.NewMockClassifier(intent.Question, 0.9), nil)
	rc := RouteContext{SessionID: "s1", CharacterID: "vex", GameState: "social"}

	out := r.Process(context.Background(), "who is the mayor?", rc)
	assert.True(t, out.Success)
	assert.True(t, out.Proceed)
	assert.Equal(t, "who is the mayor?", out.Payload.Text)
	assert.Equal(t, rc, out.Payload.Context)
	assert.Equal(t, intent.Question, out.Payload.Intent)
	assert.Equal(t, 0.9, out.Payload.Confidence)
}

func TestProcess_PassingValidationReachesHandler(t *testing.T) {
	registry := validation.NewRegistry()
	registry.Register(intent.Action, validation.ValidatorFunc(func(ctx context.Context, req validation.Request) validation.Result {
		assert.Equal(t, "vex", req.CharacterID)
		assert.Equal(t, "Rope", req.Params.Item)
		assert.Equal(t, "exploration", req.GameState)
		return validation.Pass(map[string]any{"item": "Rope"})
	}))
	r := New(intent.NewMockClassifier(intent.Action, 0.9), registry)
	h := &recordingHandler{out: Outcome{Success: true, Proceed: true, Message: "ok"}}
	r.SetHandler(intent.Action, h)

	out := r.Process(context.Background(), "I use the rope", RouteContext{
		CharacterID: "vex",
		GameState:   "exploration",
		Params:      validation.Params{Item: "Rope"},
	})

	assert.Equal(t, 1, h.calls)
	assert.Equal(t, "ok", out.Message)
	require.NotNil(t, out.Validation)
	assert.True(t, out.Validation.Status)
	assert.Equal(t, "Rope", out.Validation.Details["item"])
}

func TestProcess_HandlerErrorBecomesOutcome(t *testing.T) {
	r := New(intent.NewMockClassifier(intent.Recall, 0.9), nil)
	r.SetHandler(intent.Recall, &recordingHandler{err: errors.New("store unavailable")})

	out := r.Process(context.Background(), "what did the innkeeper say", RouteContext{})
	assert.False(t, out.Success)
	assert.False(t, out.Proceed)
	assert.Equal(t, "Error processing input: store unavailable", out.Message)
	assert.Equal(t, validation.KindInternalError, out.Kind)
}

func TestProcess_PanicBecomesOutcome(t *testing.T) {
	r := New(intent.NewMockClassifier(intent.AskRule, 0.9), nil)
	r.SetHandler(intent.AskRule, HandlerFunc(func(ctx context.Context, p Payload) (Outcome, error) {
		panic("boom")
	}))

	out := r.Process(context.Background(), "how does grappling work", RouteContext{})
	assert.False(t, out.Success)
	assert.False(t, out.Proceed)
	assert.Equal(t, "Error processing input: boom", out.Message)
}

func TestProcess_RuntimeReplacement(t *testing.T) {
	registry := validation.NewRegistry()
	r := New(intent.NewMockClassifier(intent.Combat, 0.95), registry)

	out := r.Process(context.Background(), "attack", RouteContext{})
	assert.True(t, out.Proceed)

	r.SetValidator(intent.Combat, failing("You have no weapon equipped"))
	out = r.Process(context.Background(), "attack", RouteContext{})
	assert.False(t, out.Proceed)
	assert.Equal(t, "You have no weapon equipped", out.Message)

	r.SetValidator(intent.Combat, nil)
	h := &recordingHandler{out: Outcome{Success: true, Proceed: false, Message: "handled"}}
	r.SetHandler(intent.Combat, h)
	out = r.Process(context.Background(), "attack", RouteContext{})
	assert.Equal(t, "handled", out.Message)
	assert.Equal(t, 1, h.calls)

	r.SetHandler(intent.Combat, nil)
	out = r.Process(context.Background(), "attack", RouteContext{})
	assert.True(t, out.Proceed)
	assert.Equal(t, 1, h.calls)
}

func TestWithThreshold(t *testing.T) {
	r := New(intent.NewMockClassifier(intent.Combat, 0.7), nil, WithThreshold(0.5))
	assert.Equal(t, 0.5, r.Threshold())

	out := r.Process(context.Background(), "attack", RouteContext{})
	assert.Equal(t, intent.Combat, out.Intent)
}
