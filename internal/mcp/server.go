package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/cvep/internal/display"
	"github.com/nvandessel/cvep/internal/ratelimit"
	"github.com/nvandessel/cvep/internal/speller"
	"github.com/nvandessel/cvep/internal/store"
)

// Server wraps the MCP SDK server around a stimulation engine.
type Server struct {
	server *sdk.Server
	engine *speller.Engine
	store  store.EventStore
	grid   *display.Grid

	snapshotDirs   []string
	sessionID      string
	defaultTargets string
	seed           uint64

	logger       *slog.Logger
	audit        *AuditLogger
	toolLimiters ratelimit.ToolLimiters

	// background protocol phase
	baseCtx    context.Context
	baseCancel context.CancelFunc
	mu         sync.Mutex
	running    string
	cancel     context.CancelFunc
	done       chan struct{}
	lastErr    error
	wg         sync.WaitGroup
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "cvep")
	Version string // Server version

	// Engine is the session under control. The server does not close it.
	Engine *speller.Engine

	// Store backs cvep_events. Nil disables the tool's results.
	Store     store.EventStore
	SessionID string

	// Grid backs cvep_snapshot; SnapshotDirs are where snapshots may be
	// written, the first one receiving relative paths.
	Grid         *display.Grid
	SnapshotDirs []string

	// DefaultTargets is used by cvep_train when no targets are given:
	// a count or a string of symbols.
	DefaultTargets string
	Seed           uint64

	// AuditDir enables the audit log at AuditDir/.cvep/audit.jsonl.
	AuditDir string

	Logger *slog.Logger
}

// NewServer creates a new MCP server with cvep tools.
func NewServer(cfg *Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			// Client initialized, ready to serve
		},
	})

	baseCtx, baseCancel := context.WithCancel(context.Background())
	s := &Server{
		server:         mcpServer,
		engine:         cfg.Engine,
		store:          cfg.Store,
		grid:           cfg.Grid,
		snapshotDirs:   cfg.SnapshotDirs,
		sessionID:      cfg.SessionID,
		defaultTargets: cfg.DefaultTargets,
		seed:           cfg.Seed,
		logger:         cfg.Logger,
		toolLimiters:   ratelimit.NewToolLimiters(),
		baseCtx:        baseCtx,
		baseCancel:     baseCancel,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.AuditDir != "" {
		s.audit = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()
	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if closeErr := s.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close cancels any phase still running, waits for it and closes the audit
// log. Safe to call twice.
func (s *Server) Close() error {
	s.mu.Lock()
	s.baseCancel()
	s.mu.Unlock()

	s.engine.Stop()
	s.wg.Wait()
	return s.audit.Close()
}

// startPhase runs fn in the background unless a phase is already running.
func (s *Server) startPhase(name string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running != "" {
		return fmt.Errorf("%s already running", s.running)
	}
	if s.baseCtx.Err() != nil {
		return errors.New("server is closed")
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.running = name
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		defer cancel()

		err := fn(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("phase failed", "phase", name, "error", err)
		}

		s.mu.Lock()
		s.running = ""
		s.cancel = nil
		s.lastErr = err
		s.mu.Unlock()
	}()
	return nil
}

// cancelPhase cancels the running phase and reports whether there was one.
func (s *Server) cancelPhase() bool {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

// phase returns the running phase name and the last phase error.
func (s *Server) phase() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running, s.lastErr
}
