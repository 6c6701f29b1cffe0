package device

import (
	"context"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

type contextKeyDeviceLabel struct{}

// GetDeviceLabel retrieves the human-readable device label from the context.
func GetDeviceLabel(ctx context.Context) string {
	if label, ok := ctx.Value(contextKeyDeviceLabel{}).(string); ok {
		return label
	}
	return ""
}

// WithDeviceLabel injects a device label into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithDeviceLabel(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, contextKeyDeviceLabel{}, label)
}

// Label summarises a User-Agent string as "<browser> on <os>". Unknown
// agents yield "".
func Label(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		return "bot"
	}
	browser, _ := ua.Browser()
	os := ua.OSInfo().Name
	if ua.Mobile() {
		os += " (mobile)"
	}
	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	default:
		return os
	}
}

// Middleware stores the device label derived from the request User-Agent.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		label := Label(r.UserAgent())
		next.ServeHTTP(w, r.WithContext(WithDeviceLabel(r.Context(), label)))
	})
}
