package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSender(t *testing.T) {
	tests := []struct {
		in   string
		want Sender
		ok   bool
	}{
		{"player", SenderPlayer, true},
		{"USER", SenderPlayer, true},
		{"dm", SenderNarrator, true},
		{"Narrator", SenderNarrator, true},
		{"assistant", SenderNarrator, true},
		{"npc", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseSender(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestEntry_SameTurn(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := Entry{Sender: SenderPlayer, Message: "hi", Timestamp: ts}
	b := Entry{Sender: SenderPlayer, Message: "hi", Timestamp: ts.In(time.FixedZone("X", 3600))}
	assert.True(t, a.SameTurn(b), "tuple match ignores zone")

	b.Message = "hello"
	assert.False(t, a.SameTurn(b))

	c := NewEntry(SenderPlayer, "hi")
	d := c
	d.Message = "edited"
	assert.True(t, c.SameTurn(d), "ids win when both present")
	assert.False(t, c.SameTurn(NewEntry(SenderPlayer, "hi")))
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Append(ctx, "missing", NewEntry(SenderPlayer, "x")), ErrNotFound)

	require.NoError(t, s.Create(ctx, New("s1", "vex")))
	assert.ErrorIs(t, s.Create(ctx, New("s1", "vex")), ErrExists)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, "s1", NewEntry(SenderPlayer, fmt.Sprintf("m%d", i))))
	}

	n, err := s.Len(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	last, err := s.History(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "m3", last[0].Message)
	assert.Equal(t, "m4", last[1].Message)

	require.NoError(t, s.PopOldest(ctx, "s1"))
	all, err := s.History(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "m1", all[0].Message)

	// Returned slices are copies
	all[0].Message = "mutated"
	again, _ := s.History(ctx, "s1", 0)
	assert.Equal(t, "m1", again[0].Message)

	require.NoError(t, s.SetHistory(ctx, "s1", nil))
	n, _ = s.Len(ctx, "s1")
	assert.Equal(t, 0, n)
	assert.NoError(t, s.PopOldest(ctx, "s1"), "popping an empty history is a no-op")

	require.NoError(t, s.SetTags(ctx, "s1", "tavern", "social"))
	meta, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "tavern", meta.Story)
	assert.Equal(t, "social", meta.Scene)
	assert.Equal(t, "vex", meta.CharacterID)
}

func TestMemoryStore_Err(t *testing.T) {
	s := NewMemoryStore()
	s.Err = errors.New("down")

	_, err := s.History(context.Background(), "s1", 0)
	assert.EqualError(t, err, "down")
}

func TestTail(t *testing.T) {
	entries := []Entry{{Message: "a"}, {Message: "b"}, {Message: "c"}}
	assert.Len(t, Tail(entries, 0), 3)
	assert.Len(t, Tail(entries, 10), 3)
	assert.Equal(t, []Entry{{Message: "c"}}, Tail(entries, 1))
	assert.Empty(t, Tail(nil, 5))
}
