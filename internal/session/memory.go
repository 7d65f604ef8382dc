package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xkilldash9x/tradewire/api/schemas"
)

// MemoryStore is an in-memory Store used by tests and dry runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions []*schemas.Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save stores a capture, assigning an id and timestamp when absent.
func (m *MemoryStore) Save(ctx context.Context, s *schemas.Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CapturedAt.IsZero() {
		s.CapturedAt = time.Now().UTC()
	}
	m.mu.Lock()
	m.sessions = append(m.sessions, s)
	m.mu.Unlock()
	return nil
}

// Latest returns the most recent capture for the platform.
func (m *MemoryStore) Latest(ctx context.Context, platform schemas.Platform) (*schemas.Session, error) {
	return m.latest(func(s *schemas.Session) bool {
		return s.Platform == platform
	})
}

// LatestForUser returns the most recent capture for the platform and email.
func (m *MemoryStore) LatestForUser(ctx context.Context, platform schemas.Platform, email string) (*schemas.Session, error) {
	return m.latest(func(s *schemas.Session) bool {
		return s.Platform == platform && s.UserEmail == email
	})
}

func (m *MemoryStore) latest(match func(*schemas.Session) bool) (*schemas.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *schemas.Session
	for _, s := range m.sessions {
		if !match(s) {
			continue
		}
		if best == nil || s.CapturedAt.After(best.CapturedAt) {
			best = s
		}
	}
	if best == nil {
		return nil, ErrNoSession
	}
	return best, nil
}
