package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/audit/buffer"
	"rollcall/pkg/platform/audit/worker"
	"rollcall/pkg/platform/middleware/device"
	"rollcall/pkg/requestcontext"
)

// DropRecorder counts events evicted from a full async buffer.
type DropRecorder interface {
	IncrementAuditDropped()
}

// Publisher stamps, enriches and records audit events. By default it writes
// synchronously; WithAsyncBuffer moves persistence to a background worker.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger
	now    func() time.Time
	drops  DropRecorder

	bufferSize int
	buf        *buffer.RingBuffer
	worker     *worker.Worker
	cancel     context.CancelFunc
	done       chan struct{}
	closeOnce  sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables async mode with a bounded buffer of size events.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.bufferSize = size
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithDropRecorder reports evictions from the async buffer.
func WithDropRecorder(r DropRecorder) Option {
	return func(p *Publisher) {
		p.drops = r
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.buf = buffer.NewRingBuffer(p.bufferSize)
		p.worker = worker.NewWorker(store, p.buf, 0, p.logger)
		ctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		p.done = make(chan struct{})
		go func() {
			defer close(p.done)
			_ = p.worker.Run(ctx)
		}()
	}
	return p
}

// Emit records event. Missing id, timestamp and category are filled in, and
// request metadata from ctx is attached. In async mode a full buffer evicts
// its oldest event so the newest is always kept.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event = p.enrich(ctx, event)

	if p.buf == nil {
		return p.store.Append(ctx, event)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if evicted, dropped := p.buf.Enqueue(event); dropped {
		p.logger.WarnContext(ctx, "audit buffer full, dropped oldest event",
			"dropped_action", evicted.Action,
			"dropped_id", evicted.ID,
			"request_id", event.RequestID,
		)
		if p.drops != nil {
			p.drops.IncrementAuditDropped()
		}
	}
	p.worker.Notify()
	return nil
}

// Dropped returns how many buffered events were evicted unsent. Always zero
// in sync mode.
func (p *Publisher) Dropped() int64 {
	if p.buf == nil {
		return 0
	}
	return p.buf.Dropped()
}

func (p *Publisher) enrich(ctx context.Context, event audit.Event) audit.Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.Device == "" {
		event.Device = device.GetDeviceLabel(ctx)
		if event.Device == "" {
			event.Device = device.Label(requestcontext.UserAgent(ctx))
		}
	}
	return event
}

// List returns a user's events when the underlying store can replay them.
func (p *Publisher) List(ctx context.Context, userID string) ([]audit.Event, error) {
	r, ok := p.store.(audit.Reader)
	if !ok {
		return nil, audit.ErrNotReadable
	}
	return r.ListByUser(ctx, userID)
}

// Close stops the background worker after draining buffered events. It is a
// no-op in sync mode and safe to call more than once.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
			<-p.done
		}
	})
	return nil
}
