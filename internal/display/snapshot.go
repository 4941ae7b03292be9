package display

import (
	"fmt"
	"io"

	"github.com/gogpu/gg"
)

// Style controls snapshot rendering.
type Style struct {
	// CellSize is the side of one element in pixels.
	CellSize int
	// Border is the gap between elements in pixels.
	Border int
	On     string
	Off    string
	Focus  string
	Back   string
}

// DefaultStyle renders white-on-black flicker with a red focus frame.
func DefaultStyle() Style {
	return Style{
		CellSize: 48,
		Border:   2,
		On:       "#ffffff",
		Off:      "#000000",
		Focus:    "#ff3030",
		Back:     "#303030",
	}
}

// Snapshot draws the current grid state with the software rasterizer.
func Snapshot(g *Grid, style Style) (*gg.Context, error) {
	if style.CellSize <= 0 {
		return nil, fmt.Errorf("cell size must be positive, got %d", style.CellSize)
	}
	l := g.Layout()
	pitch := style.CellSize + style.Border
	dc := gg.NewContext(l.Cols*pitch+style.Border, l.Rows*pitch+style.Border)

	dc.SetHexColor(style.Back)
	dc.DrawRectangle(0, 0, float64(dc.Width()), float64(dc.Height()))
	if err := dc.Fill(); err != nil {
		dc.Close()
		return nil, fmt.Errorf("filling background: %w", err)
	}

	states, focused := g.frame()
	for i, el := range l.Elements {
		x := float64(style.Border + el.Col*pitch)
		y := float64(style.Border + el.Row*pitch)
		size := float64(style.CellSize)

		if states[i] {
			dc.SetHexColor(style.On)
		} else {
			dc.SetHexColor(style.Off)
		}
		dc.DrawRectangle(x, y, size, size)
		if err := dc.Fill(); err != nil {
			dc.Close()
			return nil, fmt.Errorf("filling element %d: %w", i, err)
		}

		if focused >= 0 && el.Symbol != "" && el.Cell == focused {
			dc.SetHexColor(style.Focus)
			dc.SetLineWidth(float64(style.Border) + 2)
			dc.DrawRectangle(x+2, y+2, size-4, size-4)
			if err := dc.Stroke(); err != nil {
				dc.Close()
				return nil, fmt.Errorf("stroking focus: %w", err)
			}
		}
	}
	return dc, nil
}

// WritePNG renders the grid and encodes it as PNG to w.
func WritePNG(w io.Writer, g *Grid, style Style) error {
	dc, err := Snapshot(g, style)
	if err != nil {
		return err
	}
	defer dc.Close()

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

// SavePNG renders the grid to a PNG file.
func SavePNG(path string, g *Grid, style Style) error {
	dc, err := Snapshot(g, style)
	if err != nil {
		return err
	}
	defer dc.Close()

	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
