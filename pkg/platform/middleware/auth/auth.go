package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/idtoken"
	"rollcall/pkg/requestcontext"
)

// TokenVerifier validates a raw ID token.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*idtoken.Claims, error)
}

type contextKeyUID struct{}

// GetUID returns the authenticated student uid, or "" when the route is
// not guarded.
func GetUID(ctx context.Context) string {
	uid, ok := ctx.Value(contextKeyUID{}).(string)
	if !ok {
		return ""
	}
	return uid
}

// WithUID injects an authenticated uid, for tests that skip the middleware.
func WithUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, contextKeyUID{}, uid)
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireOwner requires a bearer ID token whose subject equals the {param}
// URL parameter. It must run inside a chi route so the parameter resolves.
func RequireOwner(verifier TokenVerifier, param string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := verifier.Verify(ctx, strings.TrimSpace(raw))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			if target := chi.URLParam(r, param); target != claims.UID {
				logger.WarnContext(ctx, "forbidden - token subject does not own resource",
					"uid", claims.UID,
					"target", target,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Token does not grant access to this profile")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUID(ctx, claims.UID)))
		})
	}
}
