package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nvandessel/cvep/internal/events"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase INFO", "INFO", slog.LevelInfo},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"uppercase TRACE", "TRACE", LevelTrace},
		{"mixed case Debug", "Debug", slog.LevelDebug},
		{"unknown defaults to info", "unknown", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{"info level", "info"},
		{"debug level", "debug"},
		{"trace level", "trace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)
			if logger == nil {
				t.Fatal("NewLogger returned nil")
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtInfo  bool
	}{
		{"info filters debug", "info", false, true},
		{"debug passes debug", "debug", true, true},
		{"trace passes debug", "trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			hasDebug := strings.Contains(buf.String(), "debug message")
			if hasDebug != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", hasDebug, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Info("info message")
			hasInfo := strings.Contains(buf.String(), "info message")
			if hasInfo != tt.logAtInfo {
				t.Errorf("info message visible = %v, want %v (buf: %q)", hasInfo, tt.logAtInfo, buf.String())
			}
		})
	}
}

func TestLevelTrace(t *testing.T) {
	// Trace should be below debug (more verbose)
	if LevelTrace >= slog.LevelDebug {
		t.Errorf("LevelTrace (%d) should be less than LevelDebug (%d)", LevelTrace, slog.LevelDebug)
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(context.Background(), LevelTrace, "marker")

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected TRACE level label, got %q", buf.String())
	}
}

func TestLogSink(t *testing.T) {
	tests := []struct {
		name         string
		level        string
		event        events.Event
		wantLogged   bool
		wantContains string
	}{
		{
			name:         "focus logged at info",
			level:        "info",
			event:        events.Event{Name: events.FocusBegins, Payload: map[string]any{"target": 3}},
			wantLogged:   true,
			wantContains: "target=3",
		},
		{
			name:       "sequence hidden at info",
			level:      "info",
			event:      events.Event{Name: events.Sequence},
			wantLogged: false,
		},
		{
			name:       "sequence hidden at debug",
			level:      "debug",
			event:      events.Event{Name: events.Sequence},
			wantLogged: false,
		},
		{
			name:         "sequence shown at trace",
			level:        "trace",
			event:        events.Event{Name: events.Sequence},
			wantLogged:   true,
			wantContains: "msg=sequence",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			sink := LogSink(NewLogger(tt.level, &buf))
			sink.Emit(tt.event)

			logged := strings.Contains(buf.String(), tt.event.Name)
			if logged != tt.wantLogged {
				t.Fatalf("logged = %v, want %v (buf: %q)", logged, tt.wantLogged, buf.String())
			}
			if tt.wantContains != "" && !strings.Contains(buf.String(), tt.wantContains) {
				t.Errorf("expected %q in %q", tt.wantContains, buf.String())
			}
		})
	}
}

func TestNewEventLog_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLog(dir, "info")

	if el != nil {
		t.Error("expected nil EventLog at info level")
	}
	if el.Sink() != nil {
		t.Error("expected nil Sink for disabled EventLog")
	}

	// Nil log should still be safe to use
	el.Emit(events.Event{Name: events.SessionBegins})
	el.Close()

	path := filepath.Join(dir, "events.jsonl")
	if _, err := os.Stat(path); err == nil {
		t.Error("events.jsonl should not exist at info level")
	}
}

func TestNewEventLog_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLog(dir, "debug")
	if el == nil {
		t.Fatal("expected non-nil EventLog at debug level")
	}

	el.Emit(events.Event{
		Name:    events.FocusBegins,
		Payload: map[string]any{"target": 5},
		Time:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	el.Close()

	data, err := os.ReadFile(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		t.Fatalf("failed to read events.jsonl: %v", err)
	}

	var entry events.Event
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("failed to parse JSONL entry: %v", err)
	}
	if entry.Name != events.FocusBegins {
		t.Errorf("name = %q, want %q", entry.Name, events.FocusBegins)
	}
	if target, ok := entry.Target(); !ok || target != 5 {
		t.Errorf("target = %d (%v), want 5", target, ok)
	}
	if !entry.Time.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("time = %v", entry.Time)
	}
}

func TestEventLog_MultipleWrites(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLog(dir, "trace")

	sink := el.Sink()
	sink.Emit(events.Event{Name: events.TestingBegins})
	sink.Emit(events.Event{Name: events.Sequence})
	sink.Emit(events.Event{Name: events.TestingEnds})
	el.Close()

	data, err := os.ReadFile(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		t.Fatalf("failed to read events.jsonl: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), string(data))
	}

	want := []string{events.TestingBegins, events.Sequence, events.TestingEnds}
	for i, line := range lines {
		var e events.Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if e.Name != want[i] {
			t.Errorf("line %d name = %q, want %q", i, e.Name, want[i])
		}
	}
}

func TestEventLog_EmitAfterClose(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLog(dir, "debug")

	el.Emit(events.Event{Name: events.SessionBegins})
	el.Close()

	// Should be a no-op, not panic or error
	el.Emit(events.Event{Name: events.SessionEnds})
	el.Close()
}

// blockingFile stalls every write until release is closed.
type blockingFile struct {
	release chan struct{}
	mu      sync.Mutex
	lines   int
}

func (f *blockingFile) Write(p []byte) (int, error) {
	<-f.release
	f.mu.Lock()
	f.lines++
	f.mu.Unlock()
	return len(p), nil
}

func (f *blockingFile) Close() error { return nil }

func TestEventLog_EmitNeverBlocks(t *testing.T) {
	f := &blockingFile{release: make(chan struct{})}
	el := newEventLog(f, 2)

	// The writer holds at most one event and the queue two more.
	for i := 0; i < 10; i++ {
		el.Emit(events.Event{Name: events.Sequence, Payload: map[string]any{"target": i}})
	}
	if got := el.Dropped(); got < 7 {
		t.Errorf("Dropped() = %d, want at least 7", got)
	}

	close(f.release)
	el.Close()

	f.mu.Lock()
	defer f.mu.Unlock()
	if int64(f.lines)+el.Dropped() != 10 {
		t.Errorf("written %d + dropped %d, want 10", f.lines, el.Dropped())
	}
}

func TestNewEventLog_CreatesDir(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "sub", "dir")

	el := NewEventLog(nested, "debug")
	if el == nil {
		t.Fatal("expected non-nil EventLog when dir needs creation")
	}
	defer el.Close()

	el.Emit(events.Event{Name: events.SessionBegins})

	info, err := os.Stat(filepath.Join(nested, "events.jsonl"))
	if err != nil {
		t.Fatalf("events.jsonl should exist after dir creation: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}
