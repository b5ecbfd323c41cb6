package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"exit-ticket-service/internal/app"
	"exit-ticket-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore with TTL
// expiry, so abandoned sessions disappear on their own.
type SessionStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.Mutex
	sessions map[string]sessionEntry
}

type sessionEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]sessionEntry),
	}
}

// NewSessionStoreWithClock is test-only for deterministic expiry.
func NewSessionStoreWithClock(ttl time.Duration, now func() time.Time) *SessionStore {
	s := NewSessionStore(ttl)
	s.clock = now
	return s
}

var _ app.SessionStore = (*SessionStore)(nil)

func (s *SessionStore) Save(_ context.Context, session *app.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = sessionEntry{data: data, expiresAt: s.clock().Add(s.ttl)}
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*app.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if !entry.expiresAt.After(s.clock()) {
		delete(s.sessions, id)
		return nil, domain.ErrSessionNotFound
	}
	var session app.Session
	if err := json.Unmarshal(entry.data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
