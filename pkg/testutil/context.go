package testutil

import (
	"context"
	"net/http"
	"time"

	authmw "rollcall/pkg/platform/middleware/auth"
	"rollcall/pkg/requestcontext"
)

// WithUID marks the request as authenticated for uid, the way the owner
// guard would after verifying a bearer token.
func WithUID(req *http.Request, uid string) *http.Request {
	if uid == "" {
		return req
	}
	return req.WithContext(authmw.WithUID(req.Context(), uid))
}

// WithRequestTime pins the request's "now".
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithRequestID sets the correlation id the request id middleware would set.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
