// Package speller implements the cVEP stimulation engine: phase-shifted code
// sequences driven by frame ticks, and the training/testing protocol that
// pauses and resumes stimulation around focus cues.
//
// The tick handler runs on the tick source's goroutine while Train and Test
// run on the caller's; all shared state is guarded by a single mutex.
// Predict and Stop are the asynchronous entry points and take effect at the
// next loop iteration or tick.
package speller

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nvandessel/cvep/internal/code"
	"github.com/nvandessel/cvep/internal/events"
	"github.com/nvandessel/cvep/internal/scheduler"
	"github.com/nvandessel/cvep/internal/sequence"
)

// Configuration errors.
var (
	ErrDuplicateOffset = errors.New("duplicate phase offset")
	ErrNoTargets       = errors.New("empty target list")
	ErrInvalidTarget   = errors.New("target out of range")
)

// DefaultPollInterval is how often the testing loop checks for predictions.
const DefaultPollInterval = time.Millisecond

// noReference marks the absence of a training target.
const noReference = -1

// Options configure a stimulation session.
type Options struct {
	// Code is the binary stimulation code shared by all cells.
	Code code.Code
	// Step is the phase offset, in code positions, between adjacent cells.
	Step int
	// TargetCount is the number of cells.
	TargetCount int
	// TrainingCycles is the number of code cycles recorded per training target.
	TrainingCycles int
	FocusOn        time.Duration
	FocusOff       time.Duration
	Rest           time.Duration
	// FrameRate is the display refresh rate. Zero means measured.
	FrameRate float64
	// PollInterval is the prediction polling period while testing.
	PollInterval time.Duration
	// Symbols labels the cells. Informational only.
	Symbols string
}

// Validate checks the options for a misconfigured experiment.
func (o Options) Validate() error {
	if o.Code.Len() < 2 {
		return fmt.Errorf("%w: length %d, need at least 2", code.ErrInvalidCode, o.Code.Len())
	}
	if o.Step <= 0 {
		return fmt.Errorf("step must be positive, got %d", o.Step)
	}
	if o.TargetCount <= 0 {
		return fmt.Errorf("target count must be positive, got %d", o.TargetCount)
	}
	if o.TrainingCycles < 0 {
		return fmt.Errorf("training cycles must be non-negative, got %d", o.TrainingCycles)
	}
	if o.FrameRate < 0 {
		return fmt.Errorf("frame rate must be non-negative, got %v", o.FrameRate)
	}
	seen := make(map[int]int, o.TargetCount)
	for id := 0; id < o.TargetCount; id++ {
		offset := (id * o.Step) % o.Code.Len()
		if other, ok := seen[offset]; ok {
			return fmt.Errorf("%w: cells %d and %d both start at %d (step %d, code length %d)",
				ErrDuplicateOffset, other, id, offset, o.Step, o.Code.Len())
		}
		seen[offset] = id
	}
	return nil
}

// Offsets returns the start offset of every cell.
func (o Options) Offsets() []int {
	out := make([]int, o.TargetCount)
	for id := range out {
		out[id] = (id * o.Step) % o.Code.Len()
	}
	return out
}

func (o Options) payload() map[string]any {
	return map[string]any{
		"pattern":         o.Code.String(),
		"step":            o.Step,
		"target_count":    o.TargetCount,
		"training_cycles": o.TrainingCycles,
		"focus_on_ms":     o.FocusOn.Milliseconds(),
		"focus_off_ms":    o.FocusOff.Milliseconds(),
		"rest_ms":         o.Rest.Milliseconds(),
		"frame_rate":      o.FrameRate,
		"symbols":         o.Symbols,
	}
}

// Deps are the collaborators of an Engine. Nil fields get defaults: a
// scheduler at the configured frame rate, a display and sink that discard,
// a focus cue that only waits, and a silent logger.
type Deps struct {
	Ticks   TickSource
	Display Display
	Focuser Focuser
	Sink    events.Sink
	Logger  *slog.Logger
	NowFunc func() time.Time
}

type cell struct {
	id  int
	seq *sequence.Sequence
	on  bool
}

// Engine drives the cells and runs the protocol.
type Engine struct {
	opts    Options
	ticks   TickSource
	display Display
	focuser Focuser
	sink    events.Sink
	logger  *slog.Logger
	nowFunc func() time.Time

	mu         sync.Mutex
	status     Status
	cells      []*cell
	reference  int
	pending    int
	hasPending bool
	calibrated *signal

	// tick handler attachment
	attached    bool
	handlerID   scheduler.HandlerID
	baseline     time.Duration
	processed    int64
	pendingSteps float64 // fractional steps carried at a measured rate
	lastFPS      float64
	lastElapsed  time.Duration

	closeOnce sync.Once
}

// New validates the options, creates one sequence per cell, starts the tick
// source and emits session_begins.
func New(opts Options, deps Deps) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	e := &Engine{
		opts:      opts,
		ticks:     deps.Ticks,
		display:   deps.Display,
		focuser:   deps.Focuser,
		sink:      deps.Sink,
		logger:    deps.Logger,
		nowFunc:   deps.NowFunc,
		status:    StatusReady,
		reference: noReference,
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.ticks == nil {
		e.ticks = scheduler.New(opts.FrameRate, scheduler.WithLogger(e.logger))
	}
	if e.display == nil {
		e.display = nopDisplay{}
	}
	if e.focuser == nil {
		e.focuser = CueFocuser{}
	}
	if e.sink == nil {
		e.sink = events.Discard
	}
	if e.nowFunc == nil {
		e.nowFunc = time.Now
	}

	for id, offset := range opts.Offsets() {
		seq, err := sequence.New(opts.Code.Len(), offset)
		if err != nil {
			return nil, fmt.Errorf("creating sequence for cell %d: %w", id, err)
		}
		e.cells = append(e.cells, &cell{id: id, seq: seq})
	}

	e.ticks.Start()
	e.emit(events.SessionBegins, opts.payload())
	e.logger.Info("session started",
		"cells", opts.TargetCount, "code_length", opts.Code.Len(), "step", opts.Step)

	return e, nil
}

// Options returns the session options.
func (e *Engine) Options() Options {
	return e.opts
}

// Status returns the current protocol phase.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.status
}

// Attached reports whether the tick handler is currently driving the cells.
func (e *Engine) Attached() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.attached
}

// CellState reports whether a cell is currently rendered on, and the index
// and cycle count of its sequence.
func (e *Engine) CellState(id int) (on bool, index, cycle int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if id < 0 || id >= len(e.cells) {
		return false, 0, 0, false
	}
	c := e.cells[id]
	return c.on, c.seq.Index(), c.seq.Cycle(), true
}

// Close stops the tick source and emits session_ends. Safe to call twice.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.detach()
		e.ticks.Stop()
		e.emit(events.SessionEnds, nil)
		e.logger.Info("session ended")
	})
	return nil
}

// reset turns every cell off and rewinds its sequence.
func (e *Engine) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, c := range e.cells {
		if c.on {
			c.on = false
			e.display.SetCellState(c.id, false)
		}
		c.seq.Reset()
	}
}

func (e *Engine) emit(name string, payload map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.emitLocked(name, payload)
}

func (e *Engine) emitLocked(name string, payload map[string]any) {
	e.sink.Emit(events.Event{Name: name, Payload: payload, Time: e.nowFunc()})
}
