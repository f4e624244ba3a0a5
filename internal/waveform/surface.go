package waveform

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const barGlyph = "█"

// CellSurface is a terminal cell grid. Each filled cell remembers its colour.
type CellSurface struct {
	width, height int
	cells         []lipgloss.Color
	clears        int
}

// NewCellSurface allocates a blank width x height grid.
func NewCellSurface(width, height int) *CellSurface {
	width, height = max(0, width), max(0, height)
	return &CellSurface{
		width:  width,
		height: height,
		cells:  make([]lipgloss.Color, width*height),
	}
}

// Size returns the grid dimensions.
func (c *CellSurface) Size() (int, int) { return c.width, c.height }

// Clear blanks every cell.
func (c *CellSurface) Clear() {
	clear(c.cells)
	c.clears++
}

// Clears counts how many times the surface has been cleared.
func (c *CellSurface) Clears() int { return c.clears }

// FillRect colours the cells inside the rectangle, clipped to the grid.
func (c *CellSurface) FillRect(x, y, w, h int, col lipgloss.Color) {
	for row := max(0, y); row < min(c.height, y+h); row++ {
		for colIdx := max(0, x); colIdx < min(c.width, x+w); colIdx++ {
			c.cells[row*c.width+colIdx] = col
		}
	}
}

// Filled reports whether the cell at (x, y) has been painted.
func (c *CellSurface) Filled(x, y int) bool {
	if x < 0 || y < 0 || x >= c.width || y >= c.height {
		return false
	}
	return c.cells[y*c.width+x] != ""
}

// ColumnHeight returns the number of painted cells in column x.
func (c *CellSurface) ColumnHeight(x int) int {
	n := 0
	for y := 0; y < c.height; y++ {
		if c.Filled(x, y) {
			n++
		}
	}
	return n
}

// String renders the grid with lipgloss, one line per row.
func (c *CellSurface) String() string {
	lines := make([]string, c.height)
	for y := 0; y < c.height; y++ {
		var b strings.Builder
		for x := 0; x < c.width; x++ {
			col := c.cells[y*c.width+x]
			if col == "" {
				b.WriteByte(' ')
				continue
			}
			b.WriteString(lipgloss.NewStyle().Foreground(col).Render(barGlyph))
		}
		lines[y] = b.String()
	}
	return strings.Join(lines, "\n")
}
