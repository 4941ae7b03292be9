package display

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func newTestGrid(t *testing.T) *Grid {
	t.Helper()
	l, err := NewLayout("ABCDEFGHIJKLMNOP", 4)
	if err != nil {
		t.Fatalf("NewLayout() error = %v", err)
	}
	return NewGrid(l)
}

func TestNewLayout_Shape(t *testing.T) {
	l, err := NewLayout("ABCDEFGHIJKLMNOP", 4)
	if err != nil {
		t.Fatalf("NewLayout() error = %v", err)
	}
	if l.Rows != 6 || l.Cols != 6 || l.Cells != 16 {
		t.Errorf("shape = %dx%d with %d cells, want 6x6 with 16", l.Rows, l.Cols, l.Cells)
	}
	if len(l.Elements) != 36 {
		t.Fatalf("elements = %d, want 36", len(l.Elements))
	}

	wantRows := [][]int{
		{11, 12, 13, 14, 15, 0},
		{15, 0, 1, 2, 3, 4},
		{3, 4, 5, 6, 7, 8},
		{7, 8, 9, 10, 11, 12},
		{11, 12, 13, 14, 15, 0},
		{15, 0, 1, 2, 3, 4},
	}
	for r, row := range wantRows {
		for c, cell := range row {
			if got := l.Elements[r*6+c].Cell; got != cell {
				t.Errorf("element (%d,%d) cell = %d, want %d", r, c, got, cell)
			}
		}
	}
}

func TestNewLayout_Targets(t *testing.T) {
	l, _ := NewLayout("ABCDEFGHIJKLMNOP", 4)

	i, ok := l.Target(0)
	if !ok {
		t.Fatal("cell 0 has no target element")
	}
	el := l.Elements[i]
	if el.Row != 1 || el.Col != 1 || el.Symbol != "A" {
		t.Errorf("target of cell 0 = %+v, want row 1 col 1 symbol A", el)
	}
	if len(l.ElementsOf(0)) != 4 {
		t.Errorf("cell 0 elements = %d, want 4", len(l.ElementsOf(0)))
	}
	if len(l.ElementsOf(5)) != 1 {
		t.Errorf("cell 5 elements = %d, want 1", len(l.ElementsOf(5)))
	}
}

func TestNewLayout_PartialLastRow(t *testing.T) {
	l, err := NewLayout("ABCDE", 4)
	if err != nil {
		t.Fatalf("NewLayout() error = %v", err)
	}
	if l.Cells != 8 {
		t.Errorf("Cells = %d, want 8", l.Cells)
	}
	if _, ok := l.Target(6); ok {
		t.Error("cell 6 has no symbol and should not be a target")
	}
}

func TestNewLayout_Errors(t *testing.T) {
	if _, err := NewLayout("ABC", 0); err == nil {
		t.Error("expected error for zero columns")
	}
	if _, err := NewLayout("", 4); err == nil {
		t.Error("expected error for no symbols")
	}
}

func TestGrid_SetCellStateSwitchesAllElements(t *testing.T) {
	g := newTestGrid(t)

	g.SetCellState(0, true)
	for _, i := range g.Layout().ElementsOf(0) {
		if !g.On(i) {
			t.Errorf("element %d should be on", i)
		}
	}
	if g.On(g.Layout().ElementsOf(5)[0]) {
		t.Error("cell 5 should stay off")
	}

	g.SetCellState(0, false)
	for _, i := range g.Layout().ElementsOf(0) {
		if g.On(i) {
			t.Errorf("element %d should be off", i)
		}
	}
	if g.Flips() != 2 {
		t.Errorf("Flips() = %d, want 2", g.Flips())
	}
}

func TestGrid_CellOn(t *testing.T) {
	g := newTestGrid(t)

	g.SetCellState(7, true)
	if !g.CellOn(7) {
		t.Error("cell 7 should be on")
	}
	if g.CellOn(6) {
		t.Error("cell 6 should be off")
	}
	if g.CellOn(99) {
		t.Error("unknown cell should report off")
	}
}

func TestGrid_Focus(t *testing.T) {
	g := newTestGrid(t)

	if _, ok := g.Focused(); ok {
		t.Fatal("nothing should be focused initially")
	}
	g.SetFocus(3, true)
	if cell, ok := g.Focused(); !ok || cell != 3 {
		t.Errorf("Focused() = (%d, %v), want (3, true)", cell, ok)
	}
	g.SetFocus(4, false)
	if cell, _ := g.Focused(); cell != 3 {
		t.Error("clearing another cell should not clear focus")
	}
	g.SetFocus(3, false)
	if _, ok := g.Focused(); ok {
		t.Error("focus should be cleared")
	}
}

func TestSnapshot_RendersStates(t *testing.T) {
	g := newTestGrid(t)
	g.SetCellState(5, true)

	style := DefaultStyle()
	dc, err := Snapshot(g, style)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	defer dc.Close()

	pitch := style.CellSize + style.Border
	wantW := 6*pitch + style.Border
	if dc.Width() != wantW || dc.Height() != wantW {
		t.Errorf("size = %dx%d, want %dx%d", dc.Width(), dc.Height(), wantW, wantW)
	}

	img := dc.Image()
	center := func(row, col int) (uint32, uint32, uint32) {
		x := style.Border + col*pitch + style.CellSize/2
		y := style.Border + row*pitch + style.CellSize/2
		r, g, b, _ := img.At(x, y).RGBA()
		return r >> 8, g >> 8, b >> 8
	}

	// Cell 5 is at row 2, col 2.
	if r, g, b := center(2, 2); r < 200 || g < 200 || b < 200 {
		t.Errorf("lit element color = (%d,%d,%d), want white", r, g, b)
	}
	if r, g, b := center(1, 1); r > 50 || g > 50 || b > 50 {
		t.Errorf("dark element color = (%d,%d,%d), want black", r, g, b)
	}
}

func TestSnapshot_InvalidStyle(t *testing.T) {
	g := newTestGrid(t)
	if _, err := Snapshot(g, Style{}); err == nil {
		t.Error("expected error for zero cell size")
	}
}

func TestWritePNG(t *testing.T) {
	g := newTestGrid(t)
	g.SetFocus(0, true)

	var buf bytes.Buffer
	if err := WritePNG(&buf, g, DefaultStyle()); err != nil {
		t.Fatalf("WritePNG() error = %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if img.Bounds().Dx() == 0 {
		t.Error("decoded image is empty")
	}
}

func TestSavePNG(t *testing.T) {
	g := newTestGrid(t)
	path := filepath.Join(t.TempDir(), "grid.png")

	if err := SavePNG(path, g, DefaultStyle()); err != nil {
		t.Fatalf("SavePNG() error = %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("expected non-empty png at %s (err: %v)", path, err)
	}
}
