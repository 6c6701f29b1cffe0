package worker

import (
	"context"
	"log/slog"
	"time"

	audit "rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/audit/buffer"
)

const defaultBatchSize = 64

// Worker drains buffered audit events into a store. Append failures are
// logged and the event is dropped; the worker never stops on a bad sink.
type Worker struct {
	store    audit.Store
	buf      *buffer.RingBuffer
	interval time.Duration
	batch    int
	logger   *slog.Logger
	wake     chan struct{}
}

func NewWorker(store audit.Store, buf *buffer.RingBuffer, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:    store,
		buf:      buf,
		interval: interval,
		batch:    defaultBatchSize,
		logger:   logger,
		wake:     make(chan struct{}, 1),
	}
}

// Notify asks the worker to flush without waiting for the next tick.
func (w *Worker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run flushes on every tick or Notify until ctx is done, then drains what is
// left and returns.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.Flush(context.WithoutCancel(ctx))
			return nil
		case <-ticker.C:
			w.Flush(ctx)
		case <-w.wake:
			w.Flush(ctx)
		}
	}
}

// Flush appends everything currently buffered and returns how many events
// were persisted.
func (w *Worker) Flush(ctx context.Context) int {
	persisted := 0
	for {
		events := w.buf.DequeueBatch(w.batch)
		if len(events) == 0 {
			return persisted
		}
		for _, event := range events {
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit append failed",
					"action", event.Action,
					"user_id", event.UserID,
					"error", err,
				)
				continue
			}
			persisted++
		}
	}
}
