package speller

import (
	"context"
	"fmt"
	"slices"

	"github.com/nvandessel/cvep/internal/events"
)

// Train runs the calibration phase over targets, in order. For each target it
// cues the subject, stimulates until the reference cell has completed the
// configured number of cycles plus one, then rests.
//
// Train is only effective from the ready status; otherwise it returns nil
// without doing anything. There is no timeout: it returns early only when ctx
// is cancelled, in which case the engine goes back to ready.
func (e *Engine) Train(ctx context.Context, targets []int) error {
	if len(targets) == 0 {
		return ErrNoTargets
	}
	for _, t := range targets {
		if t < 0 || t >= e.opts.TargetCount {
			return fmt.Errorf("%w: %d (cells: %d)", ErrInvalidTarget, t, e.opts.TargetCount)
		}
	}

	e.mu.Lock()
	if !e.transitionLocked(StatusCalibrating) {
		e.mu.Unlock()
		return nil
	}
	e.emitLocked(events.TrainingBegins, map[string]any{"targets": slices.Clone(targets)})
	e.mu.Unlock()

	for i, target := range targets {
		if err := e.trainTarget(ctx, target); err != nil {
			e.abortTraining(err)
			return err
		}
		if i < len(targets)-1 {
			if err := sleep(ctx, e.opts.Rest); err != nil {
				e.abortTraining(err)
				return err
			}
		}
	}

	e.mu.Lock()
	e.reference = noReference
	e.transitionLocked(StatusIdle)
	e.emitLocked(events.TrainingEnds, nil)
	e.mu.Unlock()

	return nil
}

func (e *Engine) trainTarget(ctx context.Context, target int) error {
	sig := newSignal()

	e.mu.Lock()
	e.reference = target
	e.calibrated = sig
	e.emitLocked(events.FocusBegins, map[string]any{"target": target})
	e.mu.Unlock()

	if err := e.focuser.Focus(ctx, target, e.opts.FocusOn, e.opts.FocusOff); err != nil {
		return fmt.Errorf("focus on target %d: %w", target, err)
	}
	e.emit(events.FocusEnds, nil)

	e.attach()
	select {
	case <-sig.done():
	case <-ctx.Done():
		e.detach()
		return ctx.Err()
	}
	e.detach()
	e.reset()
	return nil
}

func (e *Engine) abortTraining(err error) {
	e.detach()
	e.reset()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.reference = noReference
	e.calibrated = nil
	e.transitionLocked(StatusReady)
	e.logger.Warn("training aborted", "error", err)
}

// Test runs the free-spelling phase. Stimulation runs continuously; whenever
// a prediction is pending it is interrupted to cue the predicted cell, then
// resumed. Test returns once Stop is called or ctx is cancelled.
//
// Test is only effective from the idle status; otherwise it returns nil
// without doing anything.
func (e *Engine) Test(ctx context.Context) error {
	e.mu.Lock()
	if !e.transitionLocked(StatusTesting) {
		e.mu.Unlock()
		return nil
	}
	e.hasPending = false
	e.emitLocked(events.TestingBegins, nil)
	e.mu.Unlock()

	e.attach()

	err := e.testLoop(ctx)

	e.detach()
	e.mu.Lock()
	if e.status == StatusTesting {
		e.transitionLocked(StatusIdle)
	}
	e.hasPending = false
	e.emitLocked(events.TestingEnds, nil)
	e.mu.Unlock()
	e.reset()

	return err
}

// testLoop polls for predictions and stop requests at a fixed interval.
func (e *Engine) testLoop(ctx context.Context) error {
	for {
		e.mu.Lock()
		testing := e.status == StatusTesting
		target, pending := e.pending, e.hasPending
		e.mu.Unlock()

		if !testing {
			return nil
		}

		if pending {
			e.detach()
			e.reset()
			err := e.focuser.Focus(ctx, target, e.opts.FocusOn, e.opts.FocusOff)

			e.mu.Lock()
			e.hasPending = false
			e.mu.Unlock()

			if err != nil {
				return fmt.Errorf("focus on prediction %d: %w", target, err)
			}
			e.attach()
		}

		if err := sleep(ctx, e.opts.PollInterval); err != nil {
			return err
		}
	}
}

// Stop ends the testing phase. It is only effective while testing and
// reports whether it was. The running Test observes the change on its next
// iteration and cleans up.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusTesting {
		return false
	}
	return e.transitionLocked(StatusIdle)
}

// Predict hands a classifier prediction to the testing loop. Predictions
// received outside the testing phase, or naming an unknown cell, are dropped.
// It reports whether the prediction was accepted.
func (e *Engine) Predict(target int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusTesting {
		e.logger.Debug("prediction dropped", "target", target, "status", e.status)
		return false
	}
	if target < 0 || target >= e.opts.TargetCount {
		e.logger.Debug("prediction out of range", "target", target)
		return false
	}
	e.pending = target
	e.hasPending = true
	return true
}
