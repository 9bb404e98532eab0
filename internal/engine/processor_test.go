package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-arbiter/internal/services"
	"github.com/jwebster45206/story-arbiter/pkg/character"
	"github.com/jwebster45206/story-arbiter/pkg/intent"
	"github.com/jwebster45206/story-arbiter/pkg/memory"
	"github.com/jwebster45206/story-arbiter/pkg/narrative"
	"github.com/jwebster45206/story-arbiter/pkg/queue"
	"github.com/jwebster45206/story-arbiter/pkg/router"
	"github.com/jwebster45206/story-arbiter/pkg/session"
	"github.com/jwebster45206/story-arbiter/pkg/validation"
)

type fixture struct {
	processor  *TurnProcessor
	store      *session.MemoryStore
	narrator   *services.MockNarrator
	classifier *intent.MockClassifier
}

func newFixture(t *testing.T, label intent.Intent, confidence float64, withNarrator bool) *fixture {
	t.Helper()
	gateway := character.NewMemoryGateway(&character.Character{
		ID:    "vex",
		Name:  "Vex",
		Class: "Rogue",
		Equipment: character.Equipment{
			Weapons: []character.Weapon{{Name: "Dagger", Type: "simple melee"}},
		},
		HitPoints: character.HitPoints{Current: 9, Max: 9},
	})
	classifier := intent.NewMockClassifier(label, confidence)
	store := session.NewMemoryStore()
	r := router.New(classifier, validation.NewDefaultRegistry(gateway, nil))
	mem := memory.NewManager(store)

	f := &fixture{store: store, classifier: classifier}
	var narrator services.Narrator
	if withNarrator {
		f.narrator = services.NewMockNarrator()
		narrator = f.narrator
	}
	f.processor = NewTurnProcessor(r, mem, store, gateway, narrator, 0, nil)
	return f
}

func TestProcess_CompletedTurn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, intent.General, 0.9, true)

	req := queue.NewTurnRequest("s1", "vex", "I walk into the tavern", validation.Params{})
	result, err := f.processor.Process(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "The story continues.", result.Narration)
	assert.Equal(t, narrative.StoryTavern, result.Story)
	assert.Equal(t, narrative.SceneExploration, result.Scene)
	assert.Equal(t, "none", result.Compression)
	assert.Empty(t, result.PlayerMessage)

	history, err := f.store.History(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, session.SenderPlayer, history[0].Sender)
	assert.Equal(t, req.MessageID, history[0].ID)
	assert.Equal(t, session.SenderNarrator, history[1].Sender)

	sess, err := f.store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "vex", sess.CharacterID, "session is created on the first message")
	assert.Equal(t, narrative.StoryTavern, sess.Story)

	require.Equal(t, 1, f.narrator.CallCount())
	prompt := f.narrator.NarrateCalls[0]
	var userMessages []string
	for _, m := range prompt {
		if m.Role == narrative.RoleUser {
			userMessages = append(userMessages, m.Content)
		}
	}
	assert.Equal(t, []string{"I walk into the tavern"}, userMessages, "the player message is not repeated from history")
}

func TestProcess_LogsCarryRequestAndSession(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(t, intent.General, 0.9, true)
	f.processor.logger = slog.New(slog.NewJSONHandler(&buf, nil))

	req := queue.NewTurnRequest("s1", "vex", "I look around", validation.Params{})
	_, err := f.processor.Process(context.Background(), req)
	require.NoError(t, err)

	var processed map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		if record["msg"] == "Turn processed" {
			processed = record
		}
	}
	require.NotNil(t, processed, buf.String())
	assert.Equal(t, "s1", processed["session_id"])
	assert.Equal(t, req.RequestID, processed["request_id"])
}

func TestProcess_RejectedAction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, intent.Combat, 0.95, true)

	req := queue.NewTurnRequest("s1", "vex", "I cast fireball at the goblin", validation.Params{Spell: "Fireball"})
	result, err := f.processor.Process(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, StatusRejected, result.Status)
	assert.Equal(t, "Your rogue cannot cast spells", result.PlayerMessage)
	assert.Equal(t, validation.KindInvalidAction, result.Outcome.Kind)
	assert.Equal(t, 0, f.narrator.CallCount())

	history, err := f.store.History(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, history, "rejected turns are not recorded")
}

func TestProcess_UnknownCharacterIsGeneric(t *testing.T) {
	f := newFixture(t, intent.Combat, 0.95, false)

	req := queue.NewTurnRequest("s1", "ghost", "I attack", validation.Params{Action: validation.ActionAttack})
	result, err := f.processor.Process(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, validation.KindNotFound, result.Outcome.Kind)
	assert.Equal(t, GenericFailureMessage, result.PlayerMessage)
}

func TestProcess_RetryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, intent.Question, 0.9, false)

	req := queue.NewTurnRequest("s1", "vex", "Who is the innkeeper?", validation.Params{})
	_, err := f.processor.Process(ctx, req)
	require.NoError(t, err)
	_, err = f.processor.Process(ctx, req)
	require.NoError(t, err)

	n, err := f.store.Len(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProcess_NarratorFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, intent.General, 0.9, true)
	f.narrator.NarrateFunc = func(ctx context.Context, messages []narrative.Message) (string, error) {
		return "", errors.New("model overloaded")
	}

	result, err := f.processor.Process(ctx, queue.NewTurnRequest("s1", "vex", "hello", validation.Params{}))
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, GenericFailureMessage, result.PlayerMessage)

	n, err := f.store.Len(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the player's turn stays recorded")
}

func TestProcess_InvalidRequest(t *testing.T) {
	f := newFixture(t, intent.General, 0.9, false)

	_, err := f.processor.Process(context.Background(), &queue.TurnRequest{SessionID: "s1"})
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = f.processor.Process(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrInvalidRequest))
	assert.Empty(t, f.classifier.Calls)
}

func TestProcess_StoreFailure(t *testing.T) {
	f := newFixture(t, intent.General, 0.9, false)
	f.store.Err = errors.New("connection refused")

	_, err := f.processor.Process(context.Background(), queue.NewTurnRequest("s1", "vex", "hello", validation.Params{}))
	assert.Error(t, err)
}

func TestProcess_ExistingSessionKeepsTags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, intent.General, 0.9, false)
	sess := session.New("s1", "vex")
	sess.Story = narrative.StoryQuestOffer
	sess.Scene = narrative.SceneSocial
	require.NoError(t, f.store.Create(ctx, sess))

	result, err := f.processor.Process(ctx, queue.NewTurnRequest("s1", "", "Hmm.", validation.Params{}))
	require.NoError(t, err)
	assert.Equal(t, narrative.StoryQuestOffer, result.Story)
	assert.Equal(t, narrative.SceneSocial, result.Scene)
}

func TestProcess_SessionLockSerializesTurns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, intent.General, 0.9, false)
	locks := memory.NewKeyedMutex()
	f.processor.SetSessionLocker(locks)

	unlock, err := locks.Lock(ctx, "s1")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = f.processor.Process(waitCtx, queue.NewTurnRequest("s1", "vex", "hello", validation.Params{}))
	assert.Error(t, err, "a held session blocks the turn until the context ends")

	unlock()
	result, err := f.processor.Process(ctx, queue.NewTurnRequest("s1", "vex", "hello", validation.Params{}))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
}

func TestPlayerMessage(t *testing.T) {
	tests := []struct {
		name    string
		outcome router.Outcome
		want    string
	}{
		{"proceed", router.Outcome{Success: true, Proceed: true}, ""},
		{"rule violation", router.Outcome{Message: "You have no weapon equipped", Kind: validation.KindInvalidAction}, "You have no weapon equipped"},
		{"not found", router.Outcome{Message: "Character not found", Kind: validation.KindNotFound}, GenericFailureMessage},
		{"internal", router.Outcome{Message: "Error validating spell cast: redis down", Kind: validation.KindInternalError}, GenericFailureMessage},
		{"no kind or message", router.Outcome{}, GenericFailureMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlayerMessage(tt.outcome))
		})
	}
}
