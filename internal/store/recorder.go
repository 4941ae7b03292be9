package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/cvep/internal/events"
)

// DefaultBufferSize is the number of events a Recorder queues before dropping.
const DefaultBufferSize = 4096

// maxBatch bounds how many queued events are written per transaction.
const maxBatch = 256

// Recorder is an events.Sink that persists one session to an EventStore.
// Emit only enqueues; a single writer goroutine drains the queue in order,
// so the tick handler never waits on the database. When the queue is full
// the event is dropped and counted.
type Recorder struct {
	store     EventStore
	sessionID string
	logger    *slog.Logger
	size      int

	mu     sync.RWMutex
	closed bool
	queue  chan events.Event
	done   chan struct{}

	written atomic.Int64
	dropped atomic.Int64

	errMu sync.Mutex
	err   error
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the logger used for write failures.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithBufferSize sets the queue capacity.
func WithBufferSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.size = n
		}
	}
}

// WithSessionID uses id instead of a generated UUID.
func WithSessionID(id string) RecorderOption {
	return func(r *Recorder) {
		if id != "" {
			r.sessionID = id
		}
	}
}

// NewRecorder registers a new session in st and starts the writer.
func NewRecorder(ctx context.Context, st EventStore, opts ...RecorderOption) (*Recorder, error) {
	r := &Recorder{
		store:     st,
		sessionID: uuid.NewString(),
		logger:    slog.New(slog.DiscardHandler),
		size:      DefaultBufferSize,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := st.CreateSession(ctx, r.sessionID, time.Now()); err != nil {
		return nil, fmt.Errorf("starting recording: %w", err)
	}

	r.queue = make(chan events.Event, r.size)
	go r.run()
	return r, nil
}

// SessionID returns the id events are recorded under.
func (r *Recorder) SessionID() string { return r.sessionID }

// Emit queues e for writing. It never blocks.
func (r *Recorder) Emit(e events.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.queue <- e:
	default:
		r.dropped.Add(1)
	}
}

// Written returns how many events reached the store.
func (r *Recorder) Written() int64 { return r.written.Load() }

// Dropped returns how many events were discarded because the queue was
// full or the recorder was closed.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Close flushes queued events and stops the writer. It returns the first
// write error, if any. The store itself is left open.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return r.firstErr()
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done

	if n := r.dropped.Load(); n > 0 {
		r.logger.Warn("recorder dropped events", "session", r.sessionID, "dropped", n)
	}
	return r.firstErr()
}

func (r *Recorder) run() {
	defer close(r.done)

	batch := make([]events.Event, 0, maxBatch)
	for e := range r.queue {
		batch = append(batch[:0], e)
	drain:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-r.queue:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		r.write(batch)
	}
}

func (r *Recorder) write(batch []events.Event) {
	ctx := context.Background()
	if err := r.store.AppendEvents(ctx, r.sessionID, batch); err != nil {
		r.logger.Warn("recording events failed", "session", r.sessionID, "count", len(batch), "error", err)
		r.setErr(err)
		return
	}
	r.written.Add(int64(len(batch)))

	for _, e := range batch {
		if e.Name != events.SessionEnds {
			continue
		}
		if err := r.store.EndSession(ctx, r.sessionID, e.Time); err != nil {
			r.logger.Warn("ending session failed", "session", r.sessionID, "error", err)
			r.setErr(err)
		}
	}
}

func (r *Recorder) setErr(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

func (r *Recorder) firstErr() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}
