package store

import (
	"context"
	"sync"
	"time"

	"rollcall/internal/student/models"
	"rollcall/pkg/platform/sentinel"
)

// InMemoryStore keeps profiles in a map guarded by a RWMutex. Records are
// cloned on the way in and out so callers never share state with the store.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*models.Profile
}

// NewInMemory creates an empty in-memory profile store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[string]*models.Profile)}
}

func (s *InMemoryStore) FindByUID(_ context.Context, uid string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[uid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

// CreateIfAbsent stores p unless a profile with the same uid exists, in which
// case it returns sentinel.ErrConflict and leaves the stored record untouched.
func (s *InMemoryStore) CreateIfAbsent(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[p.UID]; exists {
		return sentinel.ErrConflict
	}
	s.profiles[p.UID] = p.Clone()
	return nil
}

func (s *InMemoryStore) TouchLastLogin(_ context.Context, uid string, at time.Time) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[uid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p.LastLoginTime = at
	return p.Clone(), nil
}

func (s *InMemoryStore) ApplyUpdate(_ context.Context, uid string, update models.ProfileUpdate, at time.Time) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[uid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	update.Apply(p, at)
	return p.Clone(), nil
}

// Len reports how many profiles are stored.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}
