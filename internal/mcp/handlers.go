package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/cvep/internal/code"
	"github.com/nvandessel/cvep/internal/display"
	"github.com/nvandessel/cvep/internal/pathutil"
	"github.com/nvandessel/cvep/internal/ratelimit"
	"github.com/nvandessel/cvep/internal/speller"
	"github.com/nvandessel/cvep/internal/store"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// registerTools registers all cvep MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "cvep_status",
		Description: "Get the protocol phase, stimulation state and session configuration",
	}, s.handleStatus)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "cvep_train",
		Description: "Start the training (calibration) phase in the background",
	}, s.handleTrain)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "cvep_test",
		Description: "Start the testing (free spelling) phase in the background; requires completed training",
	}, s.handleTest)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "cvep_stop",
		Description: "Stop the testing phase; with abort, also cancel training in progress",
	}, s.handleStop)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "cvep_predict",
		Description: "Deliver a classifier prediction; the predicted cell is cued while testing",
	}, s.handlePredict)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "cvep_events",
		Description: "List recorded stimulation events (markers) of a session",
	}, s.handleEvents)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "cvep_snapshot",
		Description: "Render the live stimulation grid to a PNG file in the snapshots directory",
	}, s.handleSnapshot)
}

func (s *Server) handleStatus(ctx context.Context, req *sdk.CallToolRequest, args StatusInput) (_ *sdk.CallToolResult, _ StatusOutput, retErr error) {
	start := time.Now()
	defer func() { s.auditTool("cvep_status", start, retErr, nil) }()

	if err := ratelimit.CheckLimit(s.toolLimiters, "cvep_status"); err != nil {
		return nil, StatusOutput{}, err
	}

	opts := s.engine.Options()
	running, lastErr := s.phase()
	out := StatusOutput{
		Status:      s.engine.Status().String(),
		Attached:    s.engine.Attached(),
		Running:     running,
		SessionID:   s.sessionID,
		Cells:       opts.TargetCount,
		Symbols:     opts.Symbols,
		Pattern:     opts.Code.String(),
		Step:        opts.Step,
		FrameRate:   opts.FrameRate,
		EpochLength: code.EpochLength(opts.Code.Len(), opts.FrameRate),
	}
	if lastErr != nil {
		out.LastError = lastErr.Error()
	}
	return nil, out, nil
}

func (s *Server) handleTrain(ctx context.Context, req *sdk.CallToolRequest, args TrainInput) (_ *sdk.CallToolResult, _ TrainOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("cvep_train", start, retErr, map[string]any{"targets": args.Targets})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "cvep_train"); err != nil {
		return nil, TrainOutput{}, err
	}

	selection := args.Targets
	if strings.TrimSpace(selection) == "" {
		selection = s.defaultTargets
	}
	opts := s.engine.Options()
	targets, err := speller.ResolveTargets(selection, opts.Symbols, s.seed)
	if err != nil {
		return nil, TrainOutput{}, fmt.Errorf("invalid targets %q: %w", selection, err)
	}

	status := s.engine.Status()
	if status != speller.StatusReady {
		return nil, TrainOutput{
			Status:  status.String(),
			Message: fmt.Sprintf("training requires status ready, current status is %s", status),
		}, nil
	}

	if err := s.startPhase("train", func(ctx context.Context) error {
		return s.engine.Train(ctx, targets)
	}); err != nil {
		return nil, TrainOutput{Status: status.String(), Message: err.Error()}, nil
	}

	symbols := symbolsOf(opts.Symbols, targets)
	return nil, TrainOutput{
		Started: true,
		Targets: targets,
		Symbols: symbols,
		Status:  s.engine.Status().String(),
		Message: fmt.Sprintf("training started on %d targets", len(targets)),
	}, nil
}

func (s *Server) handleTest(ctx context.Context, req *sdk.CallToolRequest, args TestInput) (_ *sdk.CallToolResult, _ TestOutput, retErr error) {
	start := time.Now()
	defer func() { s.auditTool("cvep_test", start, retErr, nil) }()

	if err := ratelimit.CheckLimit(s.toolLimiters, "cvep_test"); err != nil {
		return nil, TestOutput{}, err
	}

	status := s.engine.Status()
	if status != speller.StatusIdle {
		return nil, TestOutput{
			Status:  status.String(),
			Message: fmt.Sprintf("testing requires status idle, current status is %s", status),
		}, nil
	}

	if err := s.startPhase("test", s.engine.Test); err != nil {
		return nil, TestOutput{Status: status.String(), Message: err.Error()}, nil
	}

	return nil, TestOutput{
		Started: true,
		Status:  s.engine.Status().String(),
		Message: "testing started",
	}, nil
}

func (s *Server) handleStop(ctx context.Context, req *sdk.CallToolRequest, args StopInput) (_ *sdk.CallToolResult, _ StopOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("cvep_stop", start, retErr, map[string]any{"abort": args.Abort})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "cvep_stop"); err != nil {
		return nil, StopOutput{}, err
	}

	if s.engine.Stop() {
		return nil, StopOutput{
			Stopped: true,
			Status:  s.engine.Status().String(),
			Message: "testing stopped",
		}, nil
	}

	if args.Abort {
		if running, _ := s.phase(); running != "" && s.cancelPhase() {
			return nil, StopOutput{
				Stopped: true,
				Status:  s.engine.Status().String(),
				Message: running + " aborted",
			}, nil
		}
	}

	status := s.engine.Status()
	return nil, StopOutput{
		Status:  status.String(),
		Message: fmt.Sprintf("nothing to stop in status %s", status),
	}, nil
}

func (s *Server) handlePredict(ctx context.Context, req *sdk.CallToolRequest, args PredictInput) (_ *sdk.CallToolResult, _ PredictOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("cvep_predict", start, retErr, map[string]any{"target": args.Target, "symbol": args.Symbol})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "cvep_predict"); err != nil {
		return nil, PredictOutput{}, err
	}

	symbols := s.engine.Options().Symbols
	var target int
	switch {
	case args.Target != nil:
		target = *args.Target
	case args.Symbol != "":
		ids, err := speller.TargetsFromSymbols(symbols, args.Symbol)
		if err != nil {
			return nil, PredictOutput{}, err
		}
		if len(ids) != 1 {
			return nil, PredictOutput{}, fmt.Errorf("symbol must be a single character, got %q", args.Symbol)
		}
		target = ids[0]
	default:
		return nil, PredictOutput{}, errors.New("'target' or 'symbol' is required")
	}

	status := s.engine.Status()
	accepted := s.engine.Predict(target)
	return nil, PredictOutput{
		Accepted: accepted,
		Target:   target,
		Symbol:   speller.Symbol(symbols, target),
		Status:   status.String(),
	}, nil
}

func (s *Server) handleEvents(ctx context.Context, req *sdk.CallToolRequest, args EventsInput) (_ *sdk.CallToolResult, _ EventsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("cvep_events", start, retErr, map[string]any{"name": args.Name, "limit": args.Limit})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "cvep_events"); err != nil {
		return nil, EventsOutput{}, err
	}

	if s.store == nil {
		return nil, EventsOutput{}, errors.New("event recording is disabled")
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}
	limit = min(limit, maxEventLimit)

	session := args.Session
	if session == "" {
		session = s.sessionID
	}

	evs, err := s.store.ListEvents(ctx, store.EventFilter{
		SessionID: session,
		Name:      args.Name,
		AfterSeq:  args.AfterSeq,
		Limit:     limit,
	})
	if err != nil {
		return nil, EventsOutput{}, fmt.Errorf("failed to list events: %w", err)
	}
	if evs == nil {
		evs = []store.StoredEvent{}
	}

	return nil, EventsOutput{Events: evs, Count: len(evs)}, nil
}

func (s *Server) handleSnapshot(ctx context.Context, req *sdk.CallToolRequest, args SnapshotInput) (_ *sdk.CallToolResult, _ SnapshotOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("cvep_snapshot", start, retErr, map[string]any{"path": args.Path})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "cvep_snapshot"); err != nil {
		return nil, SnapshotOutput{}, err
	}

	if s.grid == nil {
		return nil, SnapshotOutput{}, errors.New("no display attached to this session")
	}

	name := args.Path
	if name == "" {
		name = fmt.Sprintf("frame-%s.png", start.Format("20060102-150405.000"))
	}
	path, err := pathutil.ResolveOutput(name, s.snapshotDirs)
	if err != nil {
		return nil, SnapshotOutput{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, SnapshotOutput{}, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	status := s.engine.Status()
	if err := display.SavePNG(path, s.grid, display.DefaultStyle()); err != nil {
		return nil, SnapshotOutput{}, err
	}

	out := SnapshotOutput{Path: path, On: []int{}, Status: status.String()}
	for cell := 0; cell < s.engine.Options().TargetCount; cell++ {
		if s.grid.CellOn(cell) {
			out.On = append(out.On, cell)
		}
	}
	if cell, ok := s.grid.Focused(); ok {
		out.Focused = &cell
	}
	return nil, out, nil
}

func symbolsOf(symbols string, cells []int) string {
	var b strings.Builder
	for _, c := range cells {
		b.WriteString(speller.Symbol(symbols, c))
	}
	return b.String()
}
