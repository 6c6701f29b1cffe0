package models

import (
	"strings"
	"time"
)

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// Limit is a request budget per sliding window.
type Limit struct {
	RequestsPerWindow int
	Window            time.Duration
}

// RateLimitExceededResponse is the API response when a limit is exceeded.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"` // seconds
}

// SanitizeKeySegment escapes the key delimiter so a client-controlled segment
// cannot address a neighbouring bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewIPRateLimitKey is the bucket key for one client address on one route.
func NewIPRateLimitKey(route, ip string) string {
	return "rl:ip:" + SanitizeKeySegment(route) + ":" + SanitizeKeySegment(ip)
}

// RetryAfterSeconds rounds the wait until resetAt up to whole seconds, never
// below one.
func RetryAfterSeconds(now, resetAt time.Time) int {
	wait := resetAt.Sub(now)
	secs := int((wait + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
