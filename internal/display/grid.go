package display

import (
	"sync"
	"sync/atomic"
)

// Grid is an in-memory display surface over a Layout. It implements the
// engine's Display and Highlighter interfaces and is safe for concurrent use.
type Grid struct {
	layout *Layout

	mu      sync.RWMutex
	on      []bool
	focused int // -1 when nothing is focused

	flips atomic.Int64
}

// NewGrid creates a grid with every element off.
func NewGrid(layout *Layout) *Grid {
	return &Grid{
		layout:  layout,
		on:      make([]bool, len(layout.Elements)),
		focused: -1,
	}
}

// Layout returns the grid layout.
func (g *Grid) Layout() *Layout {
	return g.layout
}

// SetCellState switches every element sharing the cell's phase.
func (g *Grid) SetCellState(cell int, on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, i := range g.layout.ElementsOf(cell) {
		g.on[i] = on
	}
	g.flips.Add(1)
}

// SetFocus emphasizes or clears the target element of a cell.
func (g *Grid) SetFocus(cell int, on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case on:
		g.focused = cell
	case g.focused == cell:
		g.focused = -1
	}
}

// Focused returns the focused cell, if any.
func (g *Grid) Focused() (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.focused, g.focused >= 0
}

// On reports whether an element is lit.
func (g *Grid) On(element int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.on[element]
}

// CellOn reports whether the elements of a cell are lit.
func (g *Grid) CellOn(cell int) bool {
	els := g.layout.ElementsOf(cell)
	if len(els) == 0 {
		return false
	}
	return g.On(els[0])
}

// Flips returns how many cell transitions have been rendered.
func (g *Grid) Flips() int64 {
	return g.flips.Load()
}

// frame copies the current element states.
func (g *Grid) frame() ([]bool, int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]bool, len(g.on))
	copy(out, g.on)
	return out, g.focused
}
