// Package logging provides leveled logging and marker tracing for cvep.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - An EventLog appending every engine event to .cvep/events.jsonl
package logging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nvandessel/cvep/internal/events"
)

// LevelTrace is a custom slog level below Debug. At this level every
// sequence marker is also written to the operational log.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// LogSink returns an events.Sink that writes events to logger. Sequence
// markers are logged at trace level, everything else at info.
func LogSink(logger *slog.Logger) events.Sink {
	return events.SinkFunc(func(e events.Event) {
		level := slog.LevelInfo
		if e.Name == events.Sequence {
			level = LevelTrace
		}
		if !logger.Enabled(context.Background(), level) {
			return
		}
		attrs := make([]any, 0, 2*len(e.Payload))
		for k, v := range e.Payload {
			attrs = append(attrs, k, v)
		}
		logger.Log(context.Background(), level, e.Name, attrs...)
	})
}

// eventLogBuffer is the queue capacity of an EventLog.
const eventLogBuffer = 1024

// EventLog writes engine events to a JSONL file. Emit only enqueues; a
// single writer goroutine appends lines in order, so the tick handler never
// waits on the file. When the queue is full the event is dropped and counted.
// A nil EventLog is safe to use; all methods are no-ops on nil receiver.
type EventLog struct {
	w io.WriteCloser

	mu     sync.RWMutex
	closed bool
	queue  chan events.Event
	done   chan struct{}

	dropped atomic.Int64
}

// NewEventLog creates an event log writing to dir/events.jsonl.
// At "info" level (the default), returns nil and no file is created.
// At "debug" or "trace" level, the file is opened for append.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewEventLog(dir string, level string) *EventLog {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	path := filepath.Join(dir, "events.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return newEventLog(f, eventLogBuffer)
}

func newEventLog(w io.WriteCloser, size int) *EventLog {
	l := &EventLog{
		w:     w,
		queue: make(chan events.Event, size),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

// Emit queues the event for writing. It never blocks. Safe to call on nil
// receiver.
func (l *EventLog) Emit(e events.Event) {
	if l == nil {
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return
	}
	select {
	case l.queue <- e:
	default:
		l.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (l *EventLog) Dropped() int64 {
	if l == nil {
		return 0
	}
	return l.dropped.Load()
}

// Sink returns the log as an events.Sink, or nil when the log is disabled,
// so that events.Multi skips it.
func (l *EventLog) Sink() events.Sink {
	if l == nil {
		return nil
	}
	return l
}

// Close writes the queued events and closes the file. Safe to call on nil
// receiver and more than once.
func (l *EventLog) Close() {
	if l == nil {
		return
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	l.w.Close()
}

func (l *EventLog) run() {
	defer close(l.done)

	for e := range l.queue {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		data = append(data, '\n')
		_, _ = l.w.Write(data)
	}
}
