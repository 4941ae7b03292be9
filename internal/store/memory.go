package store

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/nvandessel/cvep/internal/events"
)

// InMemoryStore implements EventStore for testing and for sessions run
// without a database.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
	events   []StoredEvent
	seq      int64
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*Session),
	}
}

// CreateSession registers a new session.
func (s *InMemoryStore) CreateSession(ctx context.Context, id string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		return fmt.Errorf("session ID is required")
	}
	if _, exists := s.sessions[id]; exists {
		return fmt.Errorf("session already exists: %s", id)
	}

	s.sessions[id] = &Session{ID: id, StartedAt: startedAt}
	s.order = append(s.order, id)
	return nil
}

// EndSession marks the session finished.
func (s *InMemoryStore) EndSession(ctx context.Context, id string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.EndedAt = &endedAt
	return nil
}

// AppendEvents records events for a session.
func (s *InMemoryStore) AppendEvents(ctx context.Context, sessionID string, evs []events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	for _, e := range evs {
		s.seq++
		e.Payload = maps.Clone(e.Payload)
		s.events = append(s.events, StoredEvent{Seq: s.seq, SessionID: sessionID, Event: e})
		sess.Events++
	}
	return nil
}

// ListSessions returns the most recent sessions first.
func (s *InMemoryStore) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Session, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, *s.sessions[s.order[i]])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListEvents returns events matching filter in recording order.
func (s *InMemoryStore) ListEvents(ctx context.Context, filter EventFilter) ([]StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []StoredEvent
	for _, e := range s.events {
		if filter.SessionID != "" && e.SessionID != filter.SessionID {
			continue
		}
		if filter.Name != "" && e.Name != filter.Name {
			continue
		}
		if e.Seq <= filter.AfterSeq {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
