package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/story-arbiter/pkg/queue"
)

// RequestsKey is the Redis list holding pending turns
const RequestsKey = "turn-requests"

// TurnQueue is a FIFO of turn requests shared by all workers
type TurnQueue struct {
	client *Client
}

func NewTurnQueue(client *Client) *TurnQueue {
	return &TurnQueue{client: client}
}

// Enqueue adds a request to the end of the queue
func (q *TurnQueue) Enqueue(ctx context.Context, req *queue.TurnRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid turn request: %w", err)
	}
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}

	if err := q.client.rdb.RPush(ctx, RequestsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}
	return nil
}

// Dequeue removes and returns the next request. Returns nil if the queue is empty.
func (q *TurnQueue) Dequeue(ctx context.Context) (*queue.TurnRequest, error) {
	result, err := q.client.rdb.LPop(ctx, RequestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}
	return parse(result)
}

// BlockingDequeue waits up to timeout for a request. Returns nil on timeout.
func (q *TurnQueue) BlockingDequeue(ctx context.Context, timeout time.Duration) (*queue.TurnRequest, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, RequestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}
	return parse(result[1])
}

// Depth returns the number of queued requests
func (q *TurnQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, RequestsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get request queue depth: %w", err)
	}
	return int(count), nil
}

func parse(raw string) (*queue.TurnRequest, error) {
	req, err := queue.FromJSON([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}
