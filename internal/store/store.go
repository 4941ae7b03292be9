// Package store records stimulation sessions and their events.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/cvep/internal/events"
)

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// Session is one engine lifetime, from session_begins to session_ends.
type Session struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Events    int        `json:"events"`
}

// StoredEvent is an event with its position in the recording.
type StoredEvent struct {
	Seq       int64  `json:"seq"`
	SessionID string `json:"session_id"`
	events.Event
}

// EventFilter narrows ListEvents. Zero values match everything.
type EventFilter struct {
	SessionID string
	Name      string
	// AfterSeq returns only events recorded after this sequence number.
	AfterSeq int64
	// Limit caps the number of events returned. Zero means no limit.
	Limit int
}

// EventStore persists sessions and events.
type EventStore interface {
	// CreateSession registers a new session.
	CreateSession(ctx context.Context, id string, startedAt time.Time) error

	// EndSession marks the session finished.
	EndSession(ctx context.Context, id string, endedAt time.Time) error

	// AppendEvents records events for a session, in order.
	AppendEvents(ctx context.Context, sessionID string, evs []events.Event) error

	// ListSessions returns the most recent sessions first.
	ListSessions(ctx context.Context, limit int) ([]Session, error)

	// ListEvents returns events in recording order.
	ListEvents(ctx context.Context, filter EventFilter) ([]StoredEvent, error)

	// Close releases resources held by the store.
	Close() error
}
