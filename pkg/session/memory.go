package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type record struct {
	meta    Session
	history []Entry
}

// MemoryStore is an in-process Store for tests and the console
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*record

	// Err, when set, is returned by every operation
	Err error
}

// Ensure MemoryStore implements Store interface
var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*record)}
}

func (m *MemoryStore) lookup(id string) (*record, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	r, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

func (m *MemoryStore) Create(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, s.ID)
	}
	m.sessions[s.ID] = &record{meta: *s}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	meta := r.meta
	return &meta, nil
}

func (m *MemoryStore) SetTags(ctx context.Context, id, story, scene string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.lookup(id)
	if err != nil {
		return err
	}
	r.meta.Story = story
	r.meta.Scene = scene
	r.meta.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) Append(ctx context.Context, id string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.lookup(id)
	if err != nil {
		return err
	}
	r.history = append(r.history, e)
	r.meta.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) History(ctx context.Context, id string, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return Tail(r.history, limit), nil
}

func (m *MemoryStore) SetHistory(ctx context.Context, id string, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.lookup(id)
	if err != nil {
		return err
	}
	r.history = append([]Entry(nil), entries...)
	r.meta.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) PopOldest(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.lookup(id)
	if err != nil {
		return err
	}
	if len(r.history) > 0 {
		r.history = r.history[1:]
	}
	return nil
}

func (m *MemoryStore) Len(ctx context.Context, id string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.lookup(id)
	if err != nil {
		return 0, err
	}
	return len(r.history), nil
}

// Tail returns a copy of the last limit entries. limit <= 0 means all.
func Tail(entries []Entry, limit int) []Entry {
	start := 0
	if limit > 0 && len(entries) > limit {
		start = len(entries) - limit
	}
	out := make([]Entry, len(entries)-start)
	copy(out, entries[start:])
	return out
}
