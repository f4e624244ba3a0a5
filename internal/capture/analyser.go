package capture

import (
	"encoding/binary"
	"math"
	"sync"
)

// Analysis tap parameters. The window size fixes the AnalysisFrame length; the
// decibel range brackets the noise floor and peak of close-mic speech.
const (
	FFTSize               = 2048
	SmoothingTimeConstant = 0.8
	MinDecibels           = -90.0
	MaxDecibels           = -10.0
)

// Analyser keeps the most recent FFTSize samples and a smoothed speech level.
// It is safe for one writer and any number of readers.
type Analyser struct {
	mu        sync.Mutex
	ring      []int16
	pos       int
	level     float64
	smoothing float64
	minDB     float64
	maxDB     float64
}

// NewAnalyser returns an analyser with the default window and dynamic range.
func NewAnalyser() *Analyser {
	return &Analyser{
		ring:      make([]int16, FFTSize),
		smoothing: SmoothingTimeConstant,
		minDB:     MinDecibels,
		maxDB:     MaxDecibels,
	}
}

// Write feeds PCM s16le bytes into the analysis window.
func (a *Analyser) Write(pcm []byte) {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % len(a.ring)
		f := float64(s) / 32768
		sum += f * f
	}

	level := 0.0
	if rms := math.Sqrt(sum / float64(n)); rms > 0 {
		db := 20 * math.Log10(rms)
		level = (db - a.minDB) / (a.maxDB - a.minDB)
		level = math.Max(0, math.Min(1, level))
	}
	a.level = a.smoothing*a.level + (1-a.smoothing)*level
}

// Frame copies the current window into dst as unsigned time-domain bytes,
// oldest sample first. 128 is silence. dst is reused when large enough.
func (a *Analyser) Frame(dst []byte) []byte {
	if cap(dst) < FFTSize {
		dst = make([]byte, FFTSize)
	}
	dst = dst[:FFTSize]

	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range dst {
		dst[i] = sampleToByte(a.ring[(a.pos+i)%len(a.ring)])
	}
	return dst
}

// Level returns the smoothed speech level in [0, 1].
func (a *Analyser) Level() float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return float32(a.level)
}

// Reset returns the analyser to silence.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	a.pos = 0
	a.level = 0
}

func sampleToByte(s int16) byte {
	return byte((int(s) >> 8) + 128)
}
