package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Op is the kind of index update.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Event is an index update emitted after the primary write commits.
type Event struct {
	Op        Op        `json:"op"`
	ProgramID string    `json:"programId"`
	Document  *Document `json:"document,omitempty"`
}

var ErrQueueFull = errors.New("index queue full")

// Queue carries index events from request handlers to the Indexer.
type Queue interface {
	Push(ctx context.Context, ev Event) error
	// Pop blocks until an event is available or ctx is done.
	Pop(ctx context.Context) (Event, error)
}

// MemoryQueue is an in-process bounded queue. Events are lost on restart.
type MemoryQueue struct {
	ch chan Event
}

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{ch: make(chan Event, size)}
}

func (q *MemoryQueue) Push(ctx context.Context, ev Event) error {
	select {
	case q.ch <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Pop(ctx context.Context) (Event, error) {
	select {
	case ev := <-q.ch:
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// RedisQueue keeps events in a Redis list so they survive restarts and can be
// drained by any replica.
type RedisQueue struct {
	rdb  *redis.Client
	key  string
	wait time.Duration
}

func NewRedisQueue(rdb *redis.Client, key string) *RedisQueue {
	return &RedisQueue{rdb: rdb, key: key, wait: 5 * time.Second}
}

func (q *RedisQueue) Push(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode index event: %w", err)
	}
	return q.rdb.LPush(ctx, q.key, payload).Err()
}

func (q *RedisQueue) Pop(ctx context.Context) (Event, error) {
	for {
		res, err := q.rdb.BRPop(ctx, q.wait, q.key).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return Event{}, ctx.Err()
			}
			continue
		}
		if err != nil {
			return Event{}, err
		}

		var ev Event
		if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
			return Event{}, fmt.Errorf("decode index event: %w", err)
		}
		return ev, nil
	}
}
