package waveform

import (
	"fmt"
	"math"

	"github.com/charmbracelet/lipgloss"
)

// Surface is a drawable area measured in whole units.
type Surface interface {
	Size() (width, height int)
	Clear()
	FillRect(x, y, w, h int, c lipgloss.Color)
}

// Gradient endpoints, left to right.
var (
	GradientStart = [3]uint8{0x00, 0xd7, 0xff}
	GradientEnd   = [3]uint8{0xff, 0x00, 0xaf}
)

// Renderer draws frames onto a Surface. It holds no state between frames.
type Renderer struct {
	Geometry Geometry
}

// NewRenderer returns a renderer using DefaultGeometry.
func NewRenderer() *Renderer {
	return &Renderer{Geometry: DefaultGeometry()}
}

// Draw clears s and paints one vertically centred bar per sample position.
// It returns the number of bars drawn.
func (r *Renderer) Draw(frame []byte, s Surface) int {
	w, h := s.Size()
	s.Clear()

	bars := Bars(frame, w, h, r.Geometry)
	stride := r.Geometry.BarWidth + r.Geometry.Gap
	for i, bh := range bars {
		cells := int(math.Round(bh))
		cells = max(1, min(h, cells))
		y := (h - cells) / 2
		s.FillRect(i*stride, y, r.Geometry.BarWidth, cells, GradientColor(i, len(bars)))
	}
	return len(bars)
}

// Clear blanks the surface after recording stops.
func (r *Renderer) Clear(s Surface) {
	s.Clear()
}

// GradientColor returns the colour of bar i out of n.
func GradientColor(i, n int) lipgloss.Color {
	t := 0.0
	if n > 1 {
		t = float64(i) / float64(n-1)
	}
	lerp := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
	}
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x",
		lerp(GradientStart[0], GradientEnd[0]),
		lerp(GradientStart[1], GradientEnd[1]),
		lerp(GradientStart[2], GradientEnd[2])))
}
