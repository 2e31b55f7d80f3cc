package session

import (
	"context"
	"sync"
	"time"

	"github.com/rolegate/rolegate/internal/store"
	"github.com/rolegate/rolegate/types"
)

// MemoryStore keeps sessions in RAM. Everything is lost on restart, which
// is acceptable for single-instance deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]types.Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]types.Session),
		now:      time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, s types.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; exists {
		return store.ErrConflict
	}
	m.sessions[s.ID] = s
	return nil
}

// Get returns a live session; expired entries are dropped and reported
// as store.ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, id string) (types.Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return types.Session{}, store.ErrNotFound
	}
	if s.Expired(m.now()) {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return types.Session{}, store.ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context) (int, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	purged := 0
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			purged++
		}
	}
	return purged, nil
}

// Len returns the number of stored sessions, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
