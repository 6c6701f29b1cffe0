// Package logsink writes audit events to a structured logger. It is the
// fallback sink when no broker is configured.
package logsink

import (
	"context"
	"log/slog"

	audit "rollcall/pkg/platform/audit"
)

type Store struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Store {
	return &Store{logger: logger.With("component", "audit")}
}

func (s *Store) Append(ctx context.Context, e audit.Event) error {
	s.logger.InfoContext(ctx, "audit event",
		"event_id", e.ID,
		"category", string(e.Category),
		"action", e.Action,
		"user_id", e.UserID,
		"decision", e.Decision,
		"reason", e.Reason,
		"request_id", e.RequestID,
		"client_ip", e.ClientIP,
		"device", e.Device,
	)
	return nil
}
