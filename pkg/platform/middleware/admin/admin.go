package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// AdminTokenHeader carries the operator token for /metrics.
const AdminTokenHeader = "X-Admin-Token"

// RequireAdminToken rejects requests whose X-Admin-Token does not match
// expectedToken with the standard 401 envelope.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(AdminTokenHeader)
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			logger.WarnContext(ctx, "admin token mismatch",
				"path", r.URL.Path,
				"client_ip", requestcontext.ClientIP(ctx),
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
		})
	}
}
