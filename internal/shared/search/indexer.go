package search

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Indexer applies queued events to the index. Failed updates are retried with
// exponential backoff and then dropped with a log line; they never reach the
// request that caused them.
type Indexer struct {
	index           Index
	queue           Queue
	logger          *zap.Logger
	maxTries        uint
	initialInterval time.Duration
}

type IndexerOption func(*Indexer)

// WithRetry overrides the attempt count and first backoff interval.
func WithRetry(maxTries uint, initial time.Duration) IndexerOption {
	return func(ix *Indexer) {
		if maxTries > 0 {
			ix.maxTries = maxTries
		}
		if initial > 0 {
			ix.initialInterval = initial
		}
	}
}

func NewIndexer(index Index, queue Queue, logger *zap.Logger, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		index:           index,
		queue:           queue,
		logger:          logger,
		maxTries:        5,
		initialInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Index exposes the backend for synchronous callers (search, reindex).
func (ix *Indexer) Index() Index {
	return ix.index
}

// Publish enqueues ev. It is called after commit, so a failure is only logged.
func (ix *Indexer) Publish(ctx context.Context, ev Event) {
	if err := ix.queue.Push(context.WithoutCancel(ctx), ev); err != nil {
		ix.logger.Warn("Failed to enqueue index event",
			zap.String("op", string(ev.Op)),
			zap.String("program_id", ev.ProgramID),
			zap.Error(err),
		)
	}
}

// Run consumes events until ctx is cancelled.
func (ix *Indexer) Run(ctx context.Context) error {
	ix.logger.Info("Search indexer started")
	for {
		ev, err := ix.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				ix.logger.Info("Search indexer stopped")
				return nil
			}
			ix.logger.Warn("Index queue read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		ix.apply(ctx, ev)
	}
}

func (ix *Indexer) apply(ctx context.Context, ev Event) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = ix.initialInterval

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := ix.handle(ctx, ev)
		if errors.Is(err, ErrUnavailable) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(ix.maxTries))
	if err != nil {
		ix.logger.Warn("Search index update failed",
			zap.String("op", string(ev.Op)),
			zap.String("program_id", ev.ProgramID),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
	}
}

func (ix *Indexer) handle(ctx context.Context, ev Event) error {
	switch ev.Op {
	case OpUpsert:
		if ev.Document == nil {
			return backoff.Permanent(errors.New("upsert event without document"))
		}
		return ix.index.Upsert(ctx, *ev.Document)
	case OpDelete:
		return ix.index.Delete(ctx, ev.ProgramID)
	default:
		return backoff.Permanent(errors.New("unknown index op " + string(ev.Op)))
	}
}
