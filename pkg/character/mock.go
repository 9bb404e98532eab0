package character

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryGateway is an in-memory Gateway for tests and local play
type MemoryGateway struct {
	mu         sync.RWMutex
	characters map[string]*Character
	err        error

	GetCalls []string
}

// Ensure MemoryGateway implements Gateway interface
var _ Gateway = (*MemoryGateway)(nil)

// NewMemoryGateway creates a gateway seeded with the given characters
func NewMemoryGateway(characters ...*Character) *MemoryGateway {
	g := &MemoryGateway{characters: make(map[string]*Character)}
	for _, c := range characters {
		g.Add(c)
	}
	return g
}

// Add stores a normalized copy of c
func (g *MemoryGateway) Add(c *Character) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := c.clone()
	cp.Normalize()
	g.characters[c.ID] = cp
}

// SetError makes every subsequent lookup fail with err
func (g *MemoryGateway) SetError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

// GetCharacter returns a copy so callers can never mutate the stored sheet
func (g *MemoryGateway) GetCharacter(ctx context.Context, id string) (*Character, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.GetCalls = append(g.GetCalls, id)

	if g.err != nil {
		return nil, g.err
	}
	c, ok := g.characters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.clone(), nil
}

func (c *Character) clone() *Character {
	data, err := json.Marshal(c)
	if err != nil {
		cp := *c
		return &cp
	}
	var cp Character
	if err := json.Unmarshal(data, &cp); err != nil {
		cp := *c
		return &cp
	}
	return &cp
}
