package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/audit/buffer"
	"rollcall/pkg/platform/audit/store/memory"
)

type flakyStore struct {
	inner *memory.InMemoryStore
	fail  string
}

func (f *flakyStore) Append(ctx context.Context, e audit.Event) error {
	if e.Action == f.fail {
		return errors.New("sink rejected event")
	}
	return f.inner.Append(ctx, e)
}

func TestWorker_FlushSkipsFailedEvents(t *testing.T) {
	store := &flakyStore{inner: memory.NewInMemoryStore(), fail: "bad"}
	buf := buffer.NewRingBuffer(10)
	w := NewWorker(store, buf, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	buf.Enqueue(audit.Event{UserID: "u-1", Action: "good"})
	buf.Enqueue(audit.Event{UserID: "u-1", Action: "bad"})
	buf.Enqueue(audit.Event{UserID: "u-1", Action: "good"})

	assert.Equal(t, 2, w.Flush(context.Background()))
	assert.Zero(t, buf.Len())

	events, err := store.inner.ListByUser(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestWorker_RunDrainsOnCancel(t *testing.T) {
	store := memory.NewInMemoryStore()
	buf := buffer.NewRingBuffer(10)
	w := NewWorker(store, buf, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	buf.Enqueue(audit.Event{UserID: "u-1", Action: "a"})
	cancel()
	require.NoError(t, <-done)

	events, err := store.ListByUser(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestWorker_NotifyFlushesPromptly(t *testing.T) {
	store := memory.NewInMemoryStore()
	buf := buffer.NewRingBuffer(10)
	w := NewWorker(store, buf, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	buf.Enqueue(audit.Event{UserID: "u-1", Action: "a"})
	w.Notify()

	assert.Eventually(t, func() bool {
		events, _ := store.ListByUser(context.Background(), "u-1")
		return len(events) == 1
	}, time.Second, 10*time.Millisecond)
}
