package search

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type fakeIndex struct {
	mu       sync.Mutex
	failures int
	calls    int
	docs     map[string]Document
}

func newFakeIndex(failures int) *fakeIndex {
	return &fakeIndex{failures: failures, docs: map[string]Document{}}
}

func (f *fakeIndex) fail() error {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("connection refused")
	}
	return nil
}

func (f *fakeIndex) Configure(context.Context) error { return nil }

func (f *fakeIndex) Upsert(_ context.Context, docs ...Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeIndex) Search(context.Context, string, Filter, int) ([]string, error) {
	return nil, nil
}

func (f *fakeIndex) Clear(context.Context) error { return nil }

func (f *fakeIndex) snapshot() (int, map[string]Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	docs := make(map[string]Document, len(f.docs))
	for k, v := range f.docs {
		docs[k] = v
	}
	return f.calls, docs
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestFilterExpression(t *testing.T) {
	tests := []struct {
		filter Filter
		want   string
	}{
		{Filter{}, ""},
		{Filter{Status: "Draft"}, `status = "Draft"`},
		{Filter{Status: "In Review", MachineID: "m-1", Customer: "Acme"}, `status = "In Review" AND machineId = "m-1" AND customer = "Acme"`},
		{Filter{Customer: `Say "hi"`}, `customer = "Say \"hi\""`},
	}
	for _, tt := range tests {
		if got := tt.filter.Expression(); got != tt.want {
			t.Errorf("Expression() = %q, want %q", got, tt.want)
		}
	}
}

func TestMemoryQueueFull(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()
	if err := q.Push(ctx, Event{Op: OpDelete, ProgramID: "a"}); err != nil {
		t.Fatalf("first push: %v", err)
	}
	if err := q.Push(ctx, Event{Op: OpDelete, ProgramID: "b"}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	ev, err := q.Pop(cctx)
	if err != nil || ev.ProgramID != "a" {
		t.Fatalf("unexpected pop %+v %v", ev, err)
	}
	cancel()
	if _, err := q.Pop(cctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestIndexerRetriesUntilSuccess(t *testing.T) {
	index := newFakeIndex(2)
	queue := NewMemoryQueue(16)
	ix := NewIndexer(index, queue, zap.NewNop(), WithRetry(5, time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ix.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	ix.Publish(context.Background(), Event{
		Op:        OpUpsert,
		ProgramID: "p-1",
		Document:  &Document{ID: "p-1", Name: "Bracket OP10"},
	})

	waitFor(t, func() bool {
		_, docs := index.snapshot()
		return docs["p-1"].Name == "Bracket OP10"
	})
	if calls, _ := index.snapshot(); calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestIndexerGivesUpAfterMaxTries(t *testing.T) {
	index := newFakeIndex(100)
	queue := NewMemoryQueue(16)
	ix := NewIndexer(index, queue, zap.NewNop(), WithRetry(3, time.Millisecond))

	ix.apply(context.Background(), Event{Op: OpDelete, ProgramID: "p-1"})

	if calls, _ := index.snapshot(); calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestIndexerDoesNotRetryWhenDisabled(t *testing.T) {
	ix := NewIndexer(Disabled{}, NewMemoryQueue(1), zap.NewNop(), WithRetry(5, time.Hour))

	start := time.Now()
	ix.apply(context.Background(), Event{Op: OpDelete, ProgramID: "p-1"})
	if time.Since(start) > time.Second {
		t.Error("disabled index should fail fast without backoff")
	}
}

func TestRedisQueueRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx := context.Background()
	key := "millpoint:test:" + time.Now().Format("150405.000000")
	defer rdb.Del(ctx, key)

	q := NewRedisQueue(rdb, key)
	want := Event{Op: OpUpsert, ProgramID: "p-9", Document: &Document{ID: "p-9", PartNumber: "0105"}}
	if err := q.Push(ctx, want); err != nil {
		t.Fatalf("Push: %v", err)
	}
	got, err := q.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if got.ProgramID != "p-9" || got.Document == nil || got.Document.PartNumber != "0105" {
		t.Errorf("unexpected event %+v", got)
	}
}
