// Package events defines the markers the stimulation engine publishes and the
// sinks that receive them.
package events

import (
	"sync"
	"time"
)

// Event names published by the engine.
const (
	SessionBegins  = "session_begins"
	SessionEnds    = "session_ends"
	TrainingBegins = "training_begins"
	FocusBegins    = "focus_begins"
	FocusEnds      = "focus_ends"
	Sequence       = "sequence"
	TrainingEnds   = "training_ends"
	TestingBegins  = "testing_begins"
	TestingEnds    = "testing_ends"
)

// Event is a single marker with an optional payload.
type Event struct {
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload,omitempty"`
	Time    time.Time      `json:"time"`
}

// Target returns the integer "target" field of the payload, if present.
func (e Event) Target() (int, bool) {
	if e.Payload == nil {
		return 0, false
	}
	switch v := e.Payload["target"].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// Sink receives events. Emit is fire-and-forget: it must not block and must
// preserve the order of calls made by a single producer.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }

// Discard is a Sink that drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans events out to several sinks in order. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return multi(kept)
}

type multi []Sink

func (m multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Memory collects events in order. It is safe for concurrent use and keeps at
// most limit events (0 means unbounded), discarding the oldest.
type Memory struct {
	mu     sync.Mutex
	events []Event
	limit  int
}

// NewMemory creates an in-memory sink.
func NewMemory(limit int) *Memory {
	return &Memory{limit: limit}
}

// Emit appends the event.
func (m *Memory) Emit(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, e)
	if m.limit > 0 && len(m.events) > m.limit {
		m.events = m.events[len(m.events)-m.limit:]
	}
}

// Events returns a copy of the collected events.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Names returns the names of the collected events in order.
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Name
	}
	return out
}

// Count returns how many collected events have the given name.
func (m *Memory) Count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

// Reset drops all collected events.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = nil
}
