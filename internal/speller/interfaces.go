package speller

import (
	"context"
	"time"

	"github.com/nvandessel/cvep/internal/scheduler"
)

// Display renders cell states. Every visual element sharing the cell's phase
// changes as one unit. The engine only calls it on actual transitions.
type Display interface {
	SetCellState(cell int, on bool)
}

// Focuser cues the subject's attention to a cell: emphasis for on, then a
// pause for off. It blocks for the whole cue.
type Focuser interface {
	Focus(ctx context.Context, cell int, on, off time.Duration) error
}

// Highlighter toggles the focus emphasis of a cell.
type Highlighter interface {
	SetFocus(cell int, on bool)
}

// TickSource produces frame ticks. *scheduler.Scheduler implements it.
type TickSource interface {
	Start()
	Stop()
	On(fn scheduler.TickFunc) scheduler.HandlerID
	Off(id scheduler.HandlerID)
	Elapsed() time.Duration
}

type nopDisplay struct{}

func (nopDisplay) SetCellState(int, bool) {}

// CueFocuser is a Focuser that drives a Highlighter with real sleeps.
type CueFocuser struct {
	Highlighter Highlighter
}

// Focus highlights the cell for on, clears it, then waits for off.
func (f CueFocuser) Focus(ctx context.Context, cell int, on, off time.Duration) error {
	if f.Highlighter != nil {
		f.Highlighter.SetFocus(cell, true)
	}
	err := sleep(ctx, on)
	if f.Highlighter != nil {
		f.Highlighter.SetFocus(cell, false)
	}
	if err != nil {
		return err
	}
	return sleep(ctx, off)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
