package narrative

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-arbiter/pkg/character"
	"github.com/jwebster45206/story-arbiter/pkg/intent"
	"github.com/jwebster45206/story-arbiter/pkg/router"
	"github.com/jwebster45206/story-arbiter/pkg/session"
	"github.com/jwebster45206/story-arbiter/pkg/validation"
)

func TestAdvanceStory(t *testing.T) {
	tests := []struct {
		name    string
		current string
		text    string
		want    string
	}{
		{"empty starts at intro", "", "I look around", StoryIntro},
		{"intro to tavern", StoryIntro, "I head to the tavern", StoryTavern},
		{"no skipping ahead", StoryIntro, "Any quest for me at the inn?", StoryTavern},
		{"tavern stays", StoryTavern, "I order another round", StoryTavern},
		{"tavern to offer", StoryTavern, "Is there any work around here?", StoryQuestOffer},
		{"offer to details", StoryQuestOffer, "Tell me more about this", StoryQuestDetails},
		{"details is final", StoryQuestDetails, "yes, where do we go", StoryQuestDetails},
		{"unknown stage kept", "epilogue", "tavern", "epilogue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AdvanceStory(tt.current, tt.text))
		})
	}
}

func TestDetectScene(t *testing.T) {
	tests := []struct {
		name    string
		current string
		text    string
		want    string
	}{
		{"combat", SceneExploration, "I attack the wolf", SceneCombat},
		{"combat outranks social", SceneSocial, "I tell him to draw steel and attack", SceneCombat},
		{"social", SceneIntro, "I greet the innkeeper", SceneSocial},
		{"exploration", SceneIntro, "I search the room", SceneExploration},
		{"no match keeps scene", SceneSocial, "Hmm.", SceneSocial},
		{"no match and no scene", "", "Hmm.", SceneIntro},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectScene(tt.current, tt.text))
		})
	}
}

func TestTemplateFor(t *testing.T) {
	assert.Contains(t, TemplateFor(SceneCombat), "### Scene: combat")
	assert.Contains(t, TemplateFor(SceneSocial), "### Scene: conversation")
	assert.Equal(t, TemplateFor(SceneExploration), TemplateFor("underwater"))
	for _, s := range []string{SceneIntro, SceneCombat, SceneSocial, SceneExploration} {
		assert.True(t, strings.HasPrefix(TemplateFor(s), baseTemplate), s)
	}
}

func TestBuilder_Build(t *testing.T) {
	c := &character.Character{
		ID:        "vex",
		Name:      "Vex",
		Class:     "Rogue",
		Race:      "Halfling",
		Level:     3,
		HitPoints: character.HitPoints{Current: 14, Max: 21},
		Equipment: character.Equipment{
			Weapons: []character.Weapon{{Name: "Shortsword"}},
			Slots:   map[string]character.Item{"ring": {Name: "Ring of Warmth"}},
		},
	}
	res := validation.Pass(map[string]any{"weapon": "Shortsword", "type": "martial melee"})
	outcome := router.Outcome{Success: true, Proceed: true, Intent: intent.Combat, Validation: &res}
	history := []session.Entry{
		{Sender: session.SenderPlayer, Message: "I enter the cave"},
		{Sender: session.SenderNarrator, Message: "A goblin snarls."},
	}

	msgs, err := NewBuilder().
		WithCharacter(c).
		WithOutcome(outcome).
		WithHistory(history).
		WithTags(StoryIntro, SceneCombat).
		WithUserMessage("I stab the goblin").
		Build()
	require.NoError(t, err)
	require.Len(t, msgs, 6)

	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "### Scene: combat")
	assert.Contains(t, msgs[0].Content, "The player is controlling: Vex, Level 3 Halfling Rogue.")
	assert.Contains(t, msgs[0].Content, "Hit points: 14/21")
	assert.Contains(t, msgs[0].Content, "Wearing: Ring of Warmth")

	assert.Equal(t, Message{Role: RoleUser, Content: "I enter the cave"}, msgs[1])
	assert.Equal(t, Message{Role: RoleAssistant, Content: "A goblin snarls."}, msgs[2])

	assert.Equal(t, RoleSystem, msgs[3].Role)
	assert.Equal(t, "Player intent: COMBAT. The action is allowed. Details: type=martial melee, weapon=Shortsword", msgs[3].Content)

	assert.Equal(t, Message{Role: RoleUser, Content: "I stab the goblin"}, msgs[4])
	assert.Equal(t, Message{Role: RoleSystem, Content: UserPostPrompt}, msgs[5])
}

func TestBuilder_RejectedOutcome(t *testing.T) {
	res := validation.Fail("You cannot rest during combat", nil)
	outcome := router.Outcome{Intent: intent.Action, Validation: &res}

	msgs, err := NewBuilder().WithOutcome(outcome).WithUserMessage("I take a nap").Build()
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[1].Content, "NOT allowed: You cannot rest during combat")
	assert.Equal(t, RejectionPostPrompt, msgs[3].Content)
}

func TestBuilder_RequiresUserMessage(t *testing.T) {
	_, err := NewBuilder().WithUserMessage("  ").Build()
	assert.Error(t, err)
}

func TestCharacterSummary(t *testing.T) {
	assert.Empty(t, CharacterSummary(nil))
	assert.Equal(t, "The player is controlling: anon.", CharacterSummary(&character.Character{ID: "anon"}))
}
