package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-arbiter/pkg/validation"
)

func TestParseInput(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantMessage string
		wantParams  validation.Params
		wantErr     bool
	}{
		{
			name:        "plain text",
			input:       "  I open the door ",
			wantMessage: "I open the door",
		},
		{
			name:        "item with spaces",
			input:       "I drink it @action=use_item @item=Potion of Healing",
			wantMessage: "I drink it",
			wantParams:  validation.Params{Action: "use_item", Item: "Potion of Healing"},
		},
		{
			name:        "params only",
			input:       "@action=cast_spell @spell=Detect Magic @ritual=true",
			wantMessage: "cast spell",
			wantParams:  validation.Params{Action: "cast_spell", Spell: "Detect Magic", Ritual: true},
		},
		{
			name:        "rest flags",
			input:       "We camp @action=rest @rest=long @time=night @flag=safe @flag=shelter",
			wantMessage: "We camp",
			wantParams: validation.Params{
				Action:        "rest",
				RestType:      "long",
				TimeOfDay:     "night",
				LocationFlags: map[string]bool{"safe": true, "shelter": true},
			},
		},
		{name: "unknown key", input: "hi @mood=happy", wantErr: true},
		{name: "missing value", input: "hi @spell", wantErr: true},
		{name: "bad ritual", input: "hi @ritual=maybe", wantErr: true},
		{name: "empty", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			message, params, err := parseInput(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMessage, message)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

func TestTranscriptFrom(t *testing.T) {
	lines := transcriptFrom(nil)
	assert.Empty(t, lines)
}
