package speller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nvandessel/cvep/internal/code"
	"github.com/nvandessel/cvep/internal/events"
	"github.com/nvandessel/cvep/internal/scheduler"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stateChange struct {
	cell int
	on   bool
}

type recordingDisplay struct {
	mu      sync.Mutex
	changes []stateChange
}

func (d *recordingDisplay) SetCellState(cell int, on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changes = append(d.changes, stateChange{cell, on})
}

func (d *recordingDisplay) Changes() []stateChange {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]stateChange, len(d.changes))
	copy(out, d.changes)
	return out
}

type recordingFocuser struct {
	mu    sync.Mutex
	cells []int
}

func (f *recordingFocuser) Focus(ctx context.Context, cell int, on, off time.Duration) error {
	f.mu.Lock()
	f.cells = append(f.cells, cell)
	f.mu.Unlock()
	return ctx.Err()
}

func (f *recordingFocuser) Calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.cells))
	copy(out, f.cells)
	return out
}

// harness wires an engine to a manual scheduler and recording collaborators.
type harness struct {
	engine  *Engine
	sched   *scheduler.Scheduler
	clock   *fakeClock
	sink    *events.Memory
	display *recordingDisplay
	focuser *recordingFocuser
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	clock := newFakeClock()
	h := &harness{
		sched:   scheduler.New(opts.FrameRate, scheduler.Manual(), scheduler.WithClock(clock.Now)),
		clock:   clock,
		sink:    events.NewMemory(0),
		display: &recordingDisplay{},
		focuser: &recordingFocuser{},
	}
	e, err := New(opts, Deps{
		Ticks:   h.sched,
		Display: h.display,
		Focuser: h.focuser,
		Sink:    h.sink,
		NowFunc: clock.Now,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { e.Close() })
	h.engine = e
	return h
}

// tick advances the clock by the given number of frames and fires one tick.
func (h *harness) tick(frames int) {
	interval := time.Duration(float64(time.Second) / h.engine.opts.FrameRate)
	h.clock.Advance(time.Duration(frames) * interval)
	h.sched.Fire(h.clock.Now())
}

// forceStatus puts the engine directly into a status, bypassing the protocol.
func (h *harness) forceStatus(s Status) {
	h.engine.mu.Lock()
	defer h.engine.mu.Unlock()
	h.engine.status = s
}

// sequenceTargets returns the targets of the emitted sequence events.
func (h *harness) sequenceTargets() []int {
	var out []int
	for _, ev := range h.sink.Events() {
		if ev.Name != events.Sequence {
			continue
		}
		target, _ := ev.Target()
		out = append(out, target)
	}
	return out
}

// startTesting runs Test in the background and waits until stimulation is attached.
func (h *harness) startTesting(t *testing.T) <-chan error {
	t.Helper()
	h.forceStatus(StatusIdle)
	done := make(chan error, 1)
	go func() { done <- h.engine.Test(context.Background()) }()
	waitFor(t, func() bool { return h.engine.Attached() })
	return done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for protocol to return")
		return nil
	}
}

func testOptions(pattern string, step, cells, cycles int, rate float64) Options {
	return Options{
		Code:           code.MustParse(pattern),
		Step:           step,
		TargetCount:    cells,
		TrainingCycles: cycles,
		FrameRate:      rate,
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
