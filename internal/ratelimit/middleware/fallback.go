package middleware

import (
	"context"
	"log/slog"
	"time"

	"rollcall/internal/platform/metrics"
	"rollcall/internal/ratelimit/models"
	"rollcall/pkg/platform/circuit"
)

// FailoverStore checks the primary store (Redis) and switches to an
// in-memory fallback while the breaker is open. The primary is still tried
// on every call so the breaker can close again; while open, X-RateLimit-Status
// reports "degraded".
type FailoverStore struct {
	primary  BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewFailoverStore(primary, fallback BucketStore, breaker *circuit.Breaker, logger *slog.Logger, m *metrics.Metrics) *FailoverStore {
	if breaker == nil {
		breaker = circuit.New("ratelimit")
	}
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		logger:   logger,
		metrics:  m,
	}
}

func (f *FailoverStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	result, err := f.primary.Allow(ctx, key, limit, window)
	if err != nil {
		useFallback, change := f.breaker.RecordFailure()
		if change.Opened {
			f.metrics.SetRateLimitDegraded(true)
			f.logger.WarnContext(ctx, "rate limit store unavailable, using in-memory fallback",
				"breaker", f.breaker.Name(),
				"error", err,
			)
		}
		if useFallback {
			return f.fallback.Allow(ctx, key, limit, window)
		}
		return nil, err
	}

	usePrimary, change := f.breaker.RecordSuccess()
	if change.Closed {
		f.metrics.SetRateLimitDegraded(false)
		f.logger.InfoContext(ctx, "rate limit store recovered",
			"breaker", f.breaker.Name(),
		)
	}
	if !usePrimary {
		return f.fallback.Allow(ctx, key, limit, window)
	}
	return result, nil
}

// Degraded reports whether checks are served by the fallback.
func (f *FailoverStore) Degraded() bool {
	return f.breaker.IsOpen()
}
