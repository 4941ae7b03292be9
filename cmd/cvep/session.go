package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nvandessel/cvep/internal/config"
	"github.com/nvandessel/cvep/internal/display"
	"github.com/nvandessel/cvep/internal/events"
	"github.com/nvandessel/cvep/internal/logging"
	"github.com/nvandessel/cvep/internal/speller"
	"github.com/nvandessel/cvep/internal/store"
)

// session is a stimulation engine with its display, logs and recording.
type session struct {
	engine   *speller.Engine
	grid     *display.Grid
	store    store.EventStore
	recorder *store.Recorder
	eventLog *logging.EventLog
	logger   *slog.Logger
}

// openStore opens the recording database, or returns nil when recording
// is disabled.
func openStore(cfg *config.CvepConfig, root string) (store.EventStore, error) {
	if cfg.Store.Disabled {
		return nil, nil
	}
	path := cfg.Store.Path
	if path == "" {
		path = store.DefaultDBPath(root)
	}
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %w", err)
	}
	return st, nil
}

// openSession validates cfg and starts an engine whose events go to the
// logger, the debug event log and the recording database.
func openSession(ctx context.Context, cfg *config.CvepConfig, root string, logOut io.Writer) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	layout, err := display.NewLayout(cfg.Symbols, cfg.Grid.Columns)
	if err != nil {
		return nil, fmt.Errorf("invalid grid: %w", err)
	}

	s := &session{
		grid:   display.NewGrid(layout),
		logger: logging.NewLogger(cfg.Logging.Level, logOut),
	}

	s.store, err = openStore(cfg, root)
	if err != nil {
		return nil, err
	}
	var recorder events.Sink
	if s.store != nil {
		s.recorder, err = store.NewRecorder(ctx, s.store, store.WithRecorderLogger(s.logger))
		if err != nil {
			s.store.Close()
			return nil, err
		}
		recorder = s.recorder
	}
	s.eventLog = logging.NewEventLog(store.LocalCvepPath(root), cfg.Logging.Level)

	s.engine, err = speller.New(opts, speller.Deps{
		Display: s.grid,
		Focuser: speller.CueFocuser{Highlighter: s.grid},
		Sink:    events.Multi(logging.LogSink(s.logger), s.eventLog.Sink(), recorder),
		Logger:  s.logger,
	})
	if err != nil {
		s.closeRecording()
		return nil, err
	}
	return s, nil
}

// sessionID returns the recording id, or "" when recording is disabled.
func (s *session) sessionID() string {
	if s.recorder == nil {
		return ""
	}
	return s.recorder.SessionID()
}

// Close ends the session, flushes the recording and closes the store.
func (s *session) Close() error {
	var errs []error
	if s.engine != nil {
		errs = append(errs, s.engine.Close())
	}
	errs = append(errs, s.closeRecording())
	return errors.Join(errs...)
}

func (s *session) closeRecording() error {
	var errs []error
	if s.recorder != nil {
		errs = append(errs, s.recorder.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	s.eventLog.Close()
	if n := s.eventLog.Dropped(); n > 0 {
		s.logger.Warn("event log dropped events", "dropped", n)
	}
	return errors.Join(errs...)
}
