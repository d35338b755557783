package memory

import (
	"context"
	"sync"
	"time"

	"formbuilder-service/internal/domain"
	"github.com/google/uuid"
)

// FillSessionStore is an in-memory implementation of app.FillSessionStore.
// Sessions older than ttl are treated as missing.
type FillSessionStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.Mutex
	sessions map[string]domain.FillSession
}

func NewFillSessionStore(ttl time.Duration) *FillSessionStore {
	return &FillSessionStore{
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]domain.FillSession),
	}
}

func (s *FillSessionStore) Start(_ context.Context, formID string) (domain.FillSession, error) {
	session := domain.FillSession{
		ID:        uuid.NewString(),
		FormID:    formID,
		StartedAt: s.clock().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	s.sessions[session.ID] = session
	return session, nil
}

// Lookup returns a live session without removing it.
func (s *FillSessionStore) Lookup(_ context.Context, sessionID string) (domain.FillSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || s.expired(session) {
		return domain.FillSession{}, false, nil
	}
	return session, true, nil
}

// Finish removes and returns a session; a session can be finished once.
func (s *FillSessionStore) Finish(_ context.Context, sessionID string) (domain.FillSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.FillSession{}, false, nil
	}
	delete(s.sessions, sessionID)
	if s.expired(session) {
		return domain.FillSession{}, false, nil
	}
	return session, true, nil
}

func (s *FillSessionStore) expired(session domain.FillSession) bool {
	return s.ttl > 0 && s.clock().Sub(session.StartedAt) > s.ttl
}

func (s *FillSessionStore) evictLocked() {
	for id, session := range s.sessions {
		if s.expired(session) {
			delete(s.sessions, id)
		}
	}
}
