package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"rollcall/internal/platform/metrics"
	"rollcall/internal/ratelimit/models"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// BucketStore admits or rejects one request against a keyed budget.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

type degradable interface {
	Degraded() bool
}

type Middleware struct {
	store    BucketStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

func New(store BucketStore, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimitIP limits each client address to limit requests per window on
// route. A failing store lets the request through.
func (m *Middleware) RateLimitIP(route string, limit models.Limit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := models.NewIPRateLimitKey(route, requestcontext.ClientIP(ctx))

			result, err := m.store.Allow(ctx, key, limit.RequestsPerWindow, limit.Window)
			if err != nil {
				m.metrics.IncrementRateLimitDecision(route, "error")
				m.logger.ErrorContext(ctx, "failed to check IP rate limit",
					"route", route,
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			if d, ok := m.store.(degradable); ok && d.Degraded() {
				w.Header().Set("X-RateLimit-Status", "degraded")
			}
			addRateLimitHeaders(w, result)

			if !result.Allowed {
				m.metrics.IncrementRateLimitDecision(route, "limited")
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"route", route,
					"retry_after", result.RetryAfter,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeRateLimitExceeded(w, result)
				return
			}

			m.metrics.IncrementRateLimitDecision(route, "allowed")
			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests from this IP address. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
