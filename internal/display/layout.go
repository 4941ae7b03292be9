// Package display provides the reference display surface: a bordered symbol
// grid whose elements are grouped by cell phase, and PNG snapshots of it.
package display

import (
	"fmt"

	"github.com/nvandessel/cvep/internal/sequence"
)

// Element is one square of the grid.
type Element struct {
	Row, Col int
	// Cell is the stimulation cell whose phase drives this element.
	Cell int
	// Symbol is set for target elements only.
	Symbol string
}

// Layout is the full grid, including the border ring that repeats phases
// from the opposite edges so that every target is surrounded by flicker.
type Layout struct {
	Rows, Cols int
	// Cells is the number of stimulation cells (inner rows x inner columns).
	Cells    int
	Elements []Element
	byCell   map[int][]int
	targets  map[int]int
}

// NewLayout arranges symbols row-major in columns and adds a one element
// border around them.
func NewLayout(symbols string, columns int) (*Layout, error) {
	runes := []rune(symbols)
	if columns <= 0 {
		return nil, fmt.Errorf("columns must be positive, got %d", columns)
	}
	if len(runes) == 0 {
		return nil, fmt.Errorf("no symbols to lay out")
	}

	innerRows := (len(runes) + columns - 1) / columns
	inner := innerRows * columns
	cols := columns + 2
	rows := innerRows + 2

	l := &Layout{
		Rows:    rows,
		Cols:    cols,
		Cells:   inner,
		byCell:  make(map[int][]int),
		targets: make(map[int]int),
	}

	// Walking a sequence over the inner cells, stepping back one at the start
	// of each row, wraps the border to the opposite edge.
	seq, err := sequence.New(inner, inner-columns)
	if err != nil {
		return nil, fmt.Errorf("creating layout sequence: %w", err)
	}
	total := rows * cols
	for i := 0; i < total; i++ {
		var shift int
		if i%cols == 0 {
			shift = seq.Prev()
		} else {
			shift = seq.Next()
		}
		el := Element{Row: i / cols, Col: i % cols, Cell: shift}
		if i > cols && i < total-cols && i%cols != 0 && i%cols != cols-1 && shift < len(runes) {
			el.Symbol = string(runes[shift])
			l.targets[shift] = len(l.Elements)
		}
		l.byCell[shift] = append(l.byCell[shift], len(l.Elements))
		l.Elements = append(l.Elements, el)
	}
	return l, nil
}

// ElementsOf returns the indexes of every element sharing the cell's phase.
func (l *Layout) ElementsOf(cell int) []int {
	return l.byCell[cell]
}

// Target returns the index of the element labelled with the cell's symbol.
func (l *Layout) Target(cell int) (int, bool) {
	i, ok := l.targets[cell]
	return i, ok
}
