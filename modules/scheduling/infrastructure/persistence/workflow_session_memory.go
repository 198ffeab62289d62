package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldcrew/mobsched/modules/scheduling/services"
)

var _ services.SessionStore = (*MemorySessionStore)(nil)

type sessionKey struct {
	tenant, id uuid.UUID
}

type memorySession struct {
	state     services.WorkflowState
	expiresAt time.Time
}

// MemorySessionStore keeps workflow states in process. Sessions are lost on
// restart and are not shared between replicas.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[sessionKey]memorySession
	locks    map[sessionKey]time.Time
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[sessionKey]memorySession),
		locks:    make(map[sessionKey]time.Time),
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Get(_ context.Context, tenantID, id uuid.UUID) (services.WorkflowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := sessionKey{tenantID, id}
	sess, ok := s.sessions[k]
	if !ok {
		return services.WorkflowState{}, services.ErrSessionNotFound
	}
	if !s.now().Before(sess.expiresAt) {
		delete(s.sessions, k)
		return services.WorkflowState{}, services.ErrSessionNotFound
	}
	return sess.state, nil
}

func (s *MemorySessionStore) Put(_ context.Context, tenantID uuid.UUID, state services.WorkflowState, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.sessions[sessionKey{tenantID, state.ID}] = memorySession{state: state, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey{tenantID, id})
	return nil
}

func (s *MemorySessionStore) Lock(_ context.Context, tenantID, id uuid.UUID, ttl time.Duration) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := sessionKey{tenantID, id}
	if until, held := s.locks[k]; held && s.now().Before(until) {
		return nil, services.ErrSessionBusy
	}
	until := s.now().Add(ttl)
	s.locks[k] = until
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.locks[k].Equal(until) {
			delete(s.locks, k)
		}
	}, nil
}

// sweep drops expired sessions and locks. Callers hold mu.
func (s *MemorySessionStore) sweep() {
	now := s.now()
	for k, sess := range s.sessions {
		if !now.Before(sess.expiresAt) {
			delete(s.sessions, k)
		}
	}
	for k, until := range s.locks {
		if !now.Before(until) {
			delete(s.locks, k)
		}
	}
}
