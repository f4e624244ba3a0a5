// Package waveform turns an analysis frame into a smoothed bar waveform.
package waveform

import "math"

// Geometry controls bar layout and the gain curve. Widths and heights are in
// surface units (terminal cells for CellSurface).
type Geometry struct {
	BarWidth  int
	Gap       int
	MinHeight float64 // floor for every bar, so silence still shows a line
	Exponent  float64 // sub-linear gain curve exponent
	Scale     float64 // gain applied after the curve
}

// DefaultGeometry favours quiet speech: amplitude^0.7 * 2.5.
func DefaultGeometry() Geometry {
	return Geometry{
		BarWidth:  1,
		Gap:       1,
		MinHeight: 1,
		Exponent:  0.7,
		Scale:     2.5,
	}
}

// BarCount returns floor(width / (BarWidth+Gap)).
func (g Geometry) BarCount(width int) int {
	stride := g.BarWidth + g.Gap
	if stride <= 0 || width <= 0 {
		return 0
	}
	return width / stride
}

// Bars computes the smoothed bar heights for frame on a width x height surface.
// The result depends only on its arguments.
func Bars(frame []byte, width, height int, g Geometry) []float64 {
	total := g.BarCount(width)
	if total == 0 {
		return nil
	}

	raw := make([]float64, total)
	for i := range raw {
		amp := 0.0
		if len(frame) > 0 {
			amp = Amplitude(frame[i*len(frame)/total])
		}
		h := math.Min(1, math.Pow(amp, g.Exponent)*g.Scale) * float64(height)
		raw[i] = math.Max(g.MinHeight, h)
	}
	return Smooth(raw)
}

// Amplitude maps an unsigned time-domain sample to |sample-128|/128.
func Amplitude(sample byte) float64 {
	const midpoint = 128.0
	return math.Abs(float64(sample)-midpoint) / midpoint
}

// Smooth averages each bar with its immediate neighbours. Edge bars average
// with their single neighbour.
func Smooth(heights []float64) []float64 {
	n := len(heights)
	out := make([]float64, n)
	switch n {
	case 0:
		return out
	case 1:
		out[0] = heights[0]
		return out
	}
	out[0] = (heights[0] + heights[1]) / 2
	out[n-1] = (heights[n-2] + heights[n-1]) / 2
	for i := 1; i < n-1; i++ {
		out[i] = (heights[i-1] + heights[i] + heights[i+1]) / 3
	}
	return out
}
