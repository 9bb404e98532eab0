// Package memory maintains the bounded per-session working memory: appending
// turns, trimming to a maximum length, and compressing to a token budget.
package memory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/story-arbiter/pkg/session"
)

// DefaultMaxHistory is the default number of entries kept per session
const DefaultMaxHistory = 20

// Manager applies working-memory rules on top of a session.Store.
// Mutations on one session are serialized through its Locker; it keeps no
// state between calls.
type Manager struct {
	store      session.Store
	locker     Locker
	maxHistory int
	logger     *slog.Logger
}

// Option configures a Manager
type Option func(*Manager)

func WithMaxHistory(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxHistory = n
		}
	}
}

// WithLocker replaces the in-process per-session lock, e.g. with a distributed one
func WithLocker(l Locker) Option {
	return func(m *Manager) {
		if l != nil {
			m.locker = l
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewManager(store session.Store, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		locker:     NewKeyedMutex(),
		maxHistory: DefaultMaxHistory,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MaxHistory returns the configured history bound
func (m *Manager) MaxHistory() int {
	return m.maxHistory
}

func (m *Manager) lock(ctx context.Context, sessionID string) (func(), error) {
	unlock, err := m.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock session %s: %w", sessionID, err)
	}
	return unlock, nil
}

// AppendMessage records a new entry stamped with the current time, then trims.
// It returns session.ErrNotFound for an unknown session.
func (m *Manager) AppendMessage(ctx context.Context, sessionID string, sender session.Sender, message string) (session.Entry, error) {
	e := session.NewEntry(sender, message)
	if err := m.AppendEntry(ctx, sessionID, e); err != nil {
		return session.Entry{}, err
	}
	return e, nil
}

// AppendEntry records a caller-built entry, then trims. Retrying an entry
// that is already the newest in history does not duplicate it.
func (m *Manager) AppendEntry(ctx context.Context, sessionID string, e session.Entry) error {
	unlock, err := m.lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	newest, err := m.store.History(ctx, sessionID, 1)
	if err != nil {
		return err
	}
	if len(newest) == 1 && newest[0].SameTurn(e) {
		m.logger.Debug("Skipping duplicate history entry", "session_id", sessionID, "entry_id", e.ID)
	} else if err := m.store.Append(ctx, sessionID, e); err != nil {
		return err
	}

	_, err = m.trim(ctx, sessionID)
	return err
}

// TrimIfNeeded removes the oldest entries until at most MaxHistory remain.
// It returns the number removed.
func (m *Manager) TrimIfNeeded(ctx context.Context, sessionID string) (int, error) {
	unlock, err := m.lock(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return m.trim(ctx, sessionID)
}

func (m *Manager) trim(ctx context.Context, sessionID string) (int, error) {
	n, err := m.store.Len(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	removed := 0
	for ; n > m.maxHistory; n-- {
		if err := m.store.PopOldest(ctx, sessionID); err != nil {
			return removed, fmt.Errorf("failed to trim session %s: %w", sessionID, err)
		}
		removed++
	}
	if removed > 0 {
		m.logger.Debug("Trimmed session history", "session_id", sessionID, "removed", removed)
	}
	return removed, nil
}

// GetHistory returns the last limit entries, oldest first. limit <= 0 means MaxHistory.
func (m *Manager) GetHistory(ctx context.Context, sessionID string, limit int) ([]session.Entry, error) {
	if limit <= 0 {
		limit = m.maxHistory
	}
	return m.store.History(ctx, sessionID, limit)
}

// ClearHistory empties the session's history
func (m *Manager) ClearHistory(ctx context.Context, sessionID string) error {
	unlock, err := m.lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()
	return m.store.SetHistory(ctx, sessionID, []session.Entry{})
}

// Compress fits the stored history to maxTokens without modifying it.
// Use CommitCompressed or CompressAndCommit to persist the result.
func (m *Manager) Compress(ctx context.Context, sessionID string, maxTokens int) (Compression, error) {
	return m.compress(ctx, sessionID, maxTokens)
}

// CompressAndCommit compresses the stored history and writes the result back
// while holding the history lock, so appends cannot land between the read and
// the write.
func (m *Manager) CompressAndCommit(ctx context.Context, sessionID string, maxTokens int) (Compression, error) {
	unlock, err := m.lock(ctx, sessionID)
	if err != nil {
		return Compression{}, err
	}
	defer unlock()

	c, err := m.compress(ctx, sessionID, maxTokens)
	if err != nil {
		return Compression{}, err
	}
	if c.Strategy == StrategyNone {
		return c, nil
	}
	if err := m.store.SetHistory(ctx, sessionID, c.Entries); err != nil {
		return Compression{}, err
	}
	return c, nil
}

// CommitCompressed replaces the stored history with entries. Entries appended
// since the caller's snapshot are lost; CompressAndCommit avoids that.
func (m *Manager) CommitCompressed(ctx context.Context, sessionID string, entries []session.Entry) error {
	unlock, err := m.lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()
	return m.store.SetHistory(ctx, sessionID, entries)
}

func (m *Manager) compress(ctx context.Context, sessionID string, maxTokens int) (Compression, error) {
	entries, err := m.store.History(ctx, sessionID, 0)
	if err != nil {
		return Compression{}, err
	}
	c := CompressEntries(entries, maxTokens)
	if c.Strategy != StrategyNone {
		m.logger.Debug("Compressed session history",
			"session_id", sessionID,
			"strategy", c.Strategy,
			"entries_before", len(entries),
			"entries_after", len(c.Entries),
			"tokens_before", c.TokensBefore,
			"tokens_after", c.TokensAfter)
	}
	return c, nil
}
