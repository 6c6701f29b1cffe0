package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	audit "rollcall/pkg/platform/audit"
)

// Store writes audit events to the audit_events table. The table is created
// by the student store migrations.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Append inserts event. Re-delivery of the same id is ignored.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, category, occurred_at, user_id, email, action,
			decision, reason, request_id, client_ip, device)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		event.ID,
		string(event.Category),
		event.Timestamp,
		nullIfEmpty(event.UserID),
		nullIfEmpty(event.Email),
		event.Action,
		nullIfEmpty(event.Decision),
		nullIfEmpty(event.Reason),
		nullIfEmpty(event.RequestID),
		nullIfEmpty(event.ClientIP),
		nullIfEmpty(event.Device),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, occurred_at, user_id, email, action, decision, reason,
			request_id, client_ip, device
		FROM audit_events
		WHERE user_id = $1
		ORDER BY occurred_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e                                                audit.Event
			category                                         string
			user, email, decision, reason, reqID, ip, device sql.NullString
		)
		if err := rows.Scan(&e.ID, &category, &e.Timestamp, &user, &email, &e.Action,
			&decision, &reason, &reqID, &ip, &device); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		e.Timestamp = e.Timestamp.UTC()
		e.UserID = user.String
		e.Email = email.String
		e.Decision = decision.String
		e.Reason = reason.String
		e.RequestID = reqID.String
		e.ClientIP = ip.String
		e.Device = device.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
