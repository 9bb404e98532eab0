package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/story-arbiter/pkg/session"
)

const (
	sessionKeyPrefix  = "session:"
	historyKeySuffix  = ":history"
	DefaultSessionTTL = 24 * time.Hour
)

// RedisSessionStore keeps session metadata as JSON under session:<id> and the
// history as a list of JSON entries under session:<id>:history.
type RedisSessionStore struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// Ensure RedisSessionStore implements session.Store interface
var _ session.Store = (*RedisSessionStore)(nil)

// NewRedisSessionStore creates a store. A ttl of 0 disables expiry.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisSessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSessionStore{client: client, logger: logger, ttl: ttl}
}

func metaKey(id string) string {
	return sessionKeyPrefix + id
}

func historyKey(id string) string {
	return sessionKeyPrefix + id + historyKeySuffix
}

func (r *RedisSessionStore) Create(ctx context.Context, s *session.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := r.client.SetNX(ctx, metaKey(s.ID), data, r.ttl).Result()
	if err != nil {
		r.logger.Error("Failed to create session", "session_id", s.ID, "error", err)
		return fmt.Errorf("failed to create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", session.ErrExists, s.ID)
	}
	return nil
}

func (r *RedisSessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := r.client.Get(ctx, metaKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", session.ErrNotFound, id)
		}
		r.logger.Error("Failed to load session", "session_id", id, "error", err)
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

func (r *RedisSessionStore) SetTags(ctx context.Context, id, story, scene string) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	s.Story = story
	s.Scene = scene
	return r.touch(ctx, r.client, s)
}

// touch stamps UpdatedAt and rewrites the metadata
func (r *RedisSessionStore) touch(ctx context.Context, cmd redis.Cmdable, s *session.Session) error {
	s.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := cmd.Set(ctx, metaKey(s.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) Append(ctx context.Context, id string, e session.Entry) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, historyKey(id), data)
		r.expire(ctx, pipe, id)
		return r.touch(ctx, pipe, s)
	})
	if err != nil {
		r.logger.Error("Failed to append history entry", "session_id", id, "error", err)
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) History(ctx context.Context, id string, limit int) ([]session.Entry, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}

	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := r.client.LRange(ctx, historyKey(id), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	entries := make([]session.Entry, 0, len(raw))
	for _, item := range raw {
		var e session.Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *RedisSessionStore) SetHistory(ctx context.Context, id string, entries []session.Entry) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	values := make([]any, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		values = append(values, data)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, historyKey(id))
		if len(values) > 0 {
			pipe.RPush(ctx, historyKey(id), values...)
			r.expire(ctx, pipe, id)
		}
		return r.touch(ctx, pipe, s)
	})
	if err != nil {
		r.logger.Error("Failed to replace history", "session_id", id, "error", err)
		return fmt.Errorf("failed to replace history: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) PopOldest(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	if err := r.client.LPop(ctx, historyKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to pop oldest entry: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) Len(ctx context.Context, id string) (int, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return 0, err
	}
	n, err := r.client.LLen(ctx, historyKey(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return int(n), nil
}

func (r *RedisSessionStore) expire(ctx context.Context, pipe redis.Pipeliner, id string) {
	if r.ttl > 0 {
		pipe.Expire(ctx, historyKey(id), r.ttl)
	}
}
