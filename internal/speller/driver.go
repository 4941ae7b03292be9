package speller

import (
	"math"
	"time"

	"github.com/nvandessel/cvep/internal/events"
	"github.com/nvandessel/cvep/internal/scheduler"
)

// attach registers the tick handler. Steps are counted from the tick
// source's elapsed time at the moment of attachment.
func (e *Engine) attach() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.attached {
		return
	}
	e.attached = true
	e.baseline = e.ticks.Elapsed()
	e.lastElapsed = e.baseline
	e.processed = 0
	e.pendingSteps = 0
	e.lastFPS = 0
	e.handlerID = e.ticks.On(e.onTick)
}

// detach unregisters the tick handler. A tick already being dispatched sees
// the cleared flag and processes nothing.
func (e *Engine) detach() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.attached {
		return
	}
	e.attached = false
	e.ticks.Off(e.handlerID)
}

// onTick advances every cell by the number of code steps implied by the
// elapsed time since attachment, minus the steps already processed.
func (e *Engine) onTick(tk scheduler.Tick) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.attached || tk.FPS <= 0 {
		return
	}

	var frames int64
	if tk.Measured {
		frames = e.measuredFramesLocked(tk)
	} else {
		frames = e.configuredFramesLocked(tk)
	}
	e.lastFPS = tk.FPS
	e.lastElapsed = tk.Elapsed

	if frames <= 0 {
		return
	}
	if frames > 1 {
		e.logger.Debug("catching up missed frames", "frames", frames, "elapsed", tk.Elapsed)
	}

	for i := int64(0); i < frames; i++ {
		if !e.stepLocked() {
			return
		}
		e.processed++
	}
}

// configuredFramesLocked counts steps against the attachment baseline so
// rounding never accumulates. A rate change re-anchors at the previous tick.
func (e *Engine) configuredFramesLocked(tk scheduler.Tick) int64 {
	if e.lastFPS != 0 && tk.FPS != e.lastFPS {
		e.baseline = e.lastElapsed
		e.processed = 0
	}
	interval := 1000 / tk.FPS
	since := float64(tk.Elapsed-e.baseline) / float64(time.Millisecond)
	return int64(math.Round(since/interval)) - e.processed
}

// measuredFramesLocked integrates the measured rate over the time since the
// previous tick, averaging the rate at both ends. The fractional remainder
// carries to the next tick.
func (e *Engine) measuredFramesLocked(tk scheduler.Tick) int64 {
	prev := e.lastFPS
	if prev == 0 {
		prev = tk.FPS
	}
	e.pendingSteps += (tk.Elapsed - e.lastElapsed).Seconds() * (prev + tk.FPS) / 2
	frames := math.Floor(e.pendingSteps)
	e.pendingSteps -= frames
	return int64(frames)
}

// stepLocked processes one code step. It returns false when calibration of
// the current target is complete and no further steps must be processed.
func (e *Engine) stepLocked() bool {
	ref := e.cells[e.referenceLocked()].seq
	cycles := e.opts.TrainingCycles

	// One extra cycle is captured after the nominal duration so that the
	// last epoch is complete downstream.
	if e.status == StatusCalibrating && ref.Cycle() == cycles+1 {
		if e.calibrated != nil && e.calibrated.fire() {
			e.logger.Debug("calibration target complete", "target", e.reference)
		}
		return false
	}

	// The final training cycle carries no markers.
	if e.status == StatusTesting || (e.status == StatusCalibrating && ref.Cycle() < cycles) {
		if ref.Index()%e.opts.Step == 0 {
			e.emitLocked(events.Sequence, map[string]any{"target": ref.Index() / e.opts.Step})
		}
	}

	for _, c := range e.cells {
		next := e.opts.Code.On(c.seq.Index())
		if next != c.on {
			c.on = next
			e.display.SetCellState(c.id, next)
		}
		c.seq.Next()
	}
	return true
}

// referenceLocked returns the cell gating markers and calibration: the
// training target while calibrating, cell 0 otherwise.
func (e *Engine) referenceLocked() int {
	if e.status == StatusCalibrating && e.reference != noReference {
		return e.reference
	}
	return 0
}
