// Package store persists student profiles.
//
// Every backend makes CreateIfAbsent atomic per uid so two concurrent first
// logins can never both create a record: the loser sees sentinel.ErrConflict.
package store

import (
	"context"
	"time"

	"rollcall/internal/student/models"
)

// Store is the contract every profile backend satisfies.
type Store interface {
	FindByUID(ctx context.Context, uid string) (*models.Profile, error)
	CreateIfAbsent(ctx context.Context, p *models.Profile) error
	TouchLastLogin(ctx context.Context, uid string, at time.Time) (*models.Profile, error)
	ApplyUpdate(ctx context.Context, uid string, update models.ProfileUpdate, at time.Time) (*models.Profile, error)
}

var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MongoStore)(nil)
	_ Store = (*CachedStore)(nil)
)
