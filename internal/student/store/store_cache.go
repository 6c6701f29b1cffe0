package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"rollcall/internal/platform/metrics"
	"rollcall/internal/student/models"
)

const profileKeyPrefix = "rollcall:profile:"

// CachedStore is a Redis read-through cache in front of another Store.
// Writes go to the backing store first; the returned profile then replaces
// the cached copy. Redis failures are logged and never fail the call.
type CachedStore struct {
	next    Store
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// CacheOption configures a CachedStore.
type CacheOption func(*CachedStore)

func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *CachedStore) { c.metrics = m }
}

func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *CachedStore) { c.logger = l }
}

// NewCached wraps next with a Redis cache holding profiles for ttl.
func NewCached(next Store, client *redis.Client, ttl time.Duration, opts ...CacheOption) *CachedStore {
	c := &CachedStore{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func profileKey(uid string) string {
	return profileKeyPrefix + uid
}

func (c *CachedStore) FindByUID(ctx context.Context, uid string) (*models.Profile, error) {
	raw, err := c.client.Get(ctx, profileKey(uid)).Bytes()
	switch {
	case err == nil:
		var p models.Profile
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			c.metrics.IncrementCacheLookup(true)
			return &p, nil
		}
		c.logger.WarnContext(ctx, "discarding undecodable cached profile", "uid", uid)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.WarnContext(ctx, "profile cache read failed", "uid", uid, "error", err)
	}
	c.metrics.IncrementCacheLookup(false)

	p, err := c.next.FindByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	c.put(ctx, p)
	return p, nil
}

func (c *CachedStore) CreateIfAbsent(ctx context.Context, p *models.Profile) error {
	if err := c.next.CreateIfAbsent(ctx, p); err != nil {
		return err
	}
	c.put(ctx, p)
	return nil
}

func (c *CachedStore) TouchLastLogin(ctx context.Context, uid string, at time.Time) (*models.Profile, error) {
	return c.refresh(ctx, uid)(c.next.TouchLastLogin(ctx, uid, at))
}

func (c *CachedStore) ApplyUpdate(ctx context.Context, uid string, update models.ProfileUpdate, at time.Time) (*models.Profile, error) {
	return c.refresh(ctx, uid)(c.next.ApplyUpdate(ctx, uid, update, at))
}

// refresh returns a continuation that caches a successful write result, or
// drops the cached copy when the write failed.
func (c *CachedStore) refresh(ctx context.Context, uid string) func(*models.Profile, error) (*models.Profile, error) {
	return func(p *models.Profile, err error) (*models.Profile, error) {
		if err != nil {
			c.evict(ctx, uid)
			return nil, err
		}
		c.put(ctx, p)
		return p, nil
	}
}

func (c *CachedStore) put(ctx context.Context, p *models.Profile) {
	raw, err := json.Marshal(p)
	if err != nil {
		c.logger.WarnContext(ctx, "profile cache encode failed", "uid", p.UID, "error", err)
		return
	}
	if err := c.client.Set(ctx, profileKey(p.UID), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "profile cache write failed", "uid", p.UID, "error", err)
	}
}

func (c *CachedStore) evict(ctx context.Context, uid string) {
	if err := c.client.Del(ctx, profileKey(uid)).Err(); err != nil {
		c.logger.WarnContext(ctx, "profile cache evict failed", "uid", uid, "error", err)
	}
}
