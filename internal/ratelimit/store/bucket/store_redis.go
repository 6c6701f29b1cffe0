package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rollcall/internal/ratelimit/models"
)

// slidingWindowScript trims the window, then admits the request only when
// the remaining budget covers its cost. Returns {allowed, count, resetAtMs}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local reset = now + window
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end

if count + cost > limit then
  return {0, count, reset}
end

for i = 1, cost do
  redis.call('ZADD', key, now, member .. ':' .. i)
end
redis.call('PEXPIRE', key, window)
return {1, count + cost, reset}
`)

// RedisBucketStore is a sliding window limiter shared by every instance,
// one sorted set of request timestamps per key.
type RedisBucketStore struct {
	client *redis.Client
	now    func() time.Time
}

type RedisOption func(*RedisBucketStore)

func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisBucketStore) {
		s.now = now
	}
}

func NewRedisBucketStore(client *redis.Client, opts ...RedisOption) *RedisBucketStore {
	s := &RedisBucketStore{client: client, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	return s.AllowN(ctx, key, 1, limit, window)
}

func (s *RedisBucketStore) AllowN(ctx context.Context, key string, cost int, limit int, window time.Duration) (*models.RateLimitResult, error) {
	if cost < 1 {
		cost = 1
	}
	now := s.now()
	res, err := slidingWindowScript.Run(ctx, s.client, []string{key},
		now.UnixMilli(), window.Milliseconds(), limit, cost, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}

	resetAt := time.UnixMilli(res[2])
	result := &models.RateLimitResult{
		Allowed:   res[0] == 1,
		Limit:     limit,
		Remaining: max(limit-int(res[1]), 0),
		ResetAt:   resetAt,
	}
	if !result.Allowed {
		result.Remaining = 0
		result.RetryAfter = models.RetryAfterSeconds(now, resetAt)
	}
	return result, nil
}

func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
