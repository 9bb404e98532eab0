package narrative

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jwebster45206/story-arbiter/pkg/character"
	"github.com/jwebster45206/story-arbiter/pkg/router"
	"github.com/jwebster45206/story-arbiter/pkg/session"
)

// Message roles understood by chat-completion models
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one chat-completion message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Builder assembles the narrator prompt with a fluent interface
type Builder struct {
	character   *character.Character
	outcome     *router.Outcome
	history     []session.Entry
	scene       string
	story       string
	userMessage string
}

// NewBuilder creates an empty prompt builder
func NewBuilder() *Builder {
	return &Builder{}
}

// WithCharacter sets the acting character snapshot
func (b *Builder) WithCharacter(c *character.Character) *Builder {
	b.character = c
	return b
}

// WithOutcome sets the routed outcome for the player's message
func (b *Builder) WithOutcome(o router.Outcome) *Builder {
	b.outcome = &o
	return b
}

// WithHistory sets the (already compressed) conversation history
func (b *Builder) WithHistory(entries []session.Entry) *Builder {
	b.history = entries
	return b
}

// WithTags sets the story stage and scene
func (b *Builder) WithTags(story, scene string) *Builder {
	b.story = story
	b.scene = scene
	return b
}

// WithUserMessage sets the player's message
func (b *Builder) WithUserMessage(message string) *Builder {
	b.userMessage = message
	return b
}

// Build returns the messages in order: system prompt, history, validation
// context, player message, closing instruction.
func (b *Builder) Build() ([]Message, error) {
	if strings.TrimSpace(b.userMessage) == "" {
		return nil, errors.New("user message is required")
	}

	messages := make([]Message, 0, len(b.history)+4)
	messages = append(messages, Message{Role: RoleSystem, Content: b.systemPrompt()})

	for _, e := range b.history {
		messages = append(messages, Message{Role: roleFor(e.Sender), Content: e.Message})
	}

	if ctx := b.outcomeContext(); ctx != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: ctx})
	}

	messages = append(messages, Message{Role: RoleUser, Content: b.userMessage})

	post := UserPostPrompt
	if b.outcome != nil && !b.outcome.Proceed {
		post = RejectionPostPrompt
	}
	messages = append(messages, Message{Role: RoleSystem, Content: post})

	return messages, nil
}

func (b *Builder) systemPrompt() string {
	var sb strings.Builder
	sb.WriteString(TemplateFor(b.scene))
	if note, ok := storyNotes[b.story]; ok {
		sb.WriteString("\n\n### Story so far\n")
		sb.WriteString(note)
	}
	if summary := CharacterSummary(b.character); summary != "" {
		sb.WriteString("\n\n### Player Character\n")
		sb.WriteString(summary)
	}
	return sb.String()
}

// outcomeContext describes what the engine decided about the player's action
func (b *Builder) outcomeContext() string {
	if b.outcome == nil {
		return ""
	}
	o := b.outcome
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Player intent: %s.", o.Intent))
	if v := o.Validation; v != nil {
		if v.Status {
			sb.WriteString(" The action is allowed.")
		} else {
			sb.WriteString(" The action is NOT allowed: " + v.Reason)
		}
		if len(v.Details) > 0 {
			sb.WriteString(" Details: " + formatDetails(v.Details))
		}
	}
	return sb.String()
}

func roleFor(s session.Sender) string {
	if s == session.SenderNarrator {
		return RoleAssistant
	}
	return RoleUser
}

// formatDetails renders details as sorted key=value pairs
func formatDetails(details map[string]any) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return strings.Join(parts, ", ")
}

// CharacterSummary describes a character for the narrator
func CharacterSummary(c *character.Character) string {
	if c == nil {
		return ""
	}
	var sb strings.Builder
	name := c.Name
	if name == "" {
		name = c.ID
	}
	sb.WriteString("The player is controlling: " + name)
	if c.Pronouns != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", c.Pronouns))
	}

	parts := []string{}
	if c.Level > 0 {
		parts = append(parts, fmt.Sprintf("Level %d", c.Level))
	}
	if c.Race != "" {
		parts = append(parts, c.Race)
	}
	if c.Class != "" {
		parts = append(parts, c.Class)
	}
	if len(parts) > 0 {
		sb.WriteString(", " + strings.Join(parts, " "))
	}
	sb.WriteString(".")

	if c.HitPoints.Max > 0 {
		sb.WriteString(fmt.Sprintf("\nHit points: %d/%d", c.HitPoints.Current, c.HitPoints.Max))
	}
	if len(c.Equipment.Weapons) > 0 {
		names := make([]string, 0, len(c.Equipment.Weapons))
		for _, w := range c.Equipment.Weapons {
			names = append(names, w.Name)
		}
		sb.WriteString("\nWeapons: " + strings.Join(names, ", "))
	}
	if slots := c.Equipment.SlotNames(); len(slots) > 0 {
		worn := make([]string, 0, len(slots))
		for _, s := range slots {
			worn = append(worn, c.Equipment.Slots[s].Name)
		}
		sb.WriteString("\nWearing: " + strings.Join(worn, ", "))
	}
	return sb.String()
}
