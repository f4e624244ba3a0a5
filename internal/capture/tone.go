package capture

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"sync"
	"time"
)

// Tone defaults: an A4 sine at roughly half scale.
const (
	ToneFrequency = 440.0
	ToneAmplitude = 16000
)

// ToneDevice is a synthetic input that plays a sine wave in real time. It
// stands in for a microphone on machines without one.
type ToneDevice struct {
	Frequency float64
	Amplitude int16
	// Frame is the pacing interval; defaults to 20ms.
	Frame time.Duration
}

// Name identifies the synthetic input.
func (d ToneDevice) Name() string { return "tone" }

// Open starts the generator.
func (d ToneDevice) Open(ctx context.Context) (io.ReadCloser, error) {
	freq := d.Frequency
	if freq == 0 {
		freq = ToneFrequency
	}
	amp := d.Amplitude
	if amp == 0 {
		amp = ToneAmplitude
	}
	frame := d.Frame
	if frame == 0 {
		frame = 20 * time.Millisecond
	}
	return &toneStream{
		ctx:     ctx,
		freq:    freq,
		amp:     float64(amp),
		perTick: int(frame * SampleRate / time.Second),
		ticker:  time.NewTicker(frame),
		closed:  make(chan struct{}),
	}, nil
}

type toneStream struct {
	ctx     context.Context
	freq    float64
	amp     float64
	perTick int
	ticker  *time.Ticker
	sample  int
	pending []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// GenerateSineWave produces mono int16 samples of a sine at frequency,
// starting at sample offset start.
func GenerateSineWave(n, start int, frequency, amplitude float64) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		t := float64(start+i) / SampleRate
		samples[i] = int16(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return samples
}

func (t *toneStream) Read(b []byte) (int, error) {
	if len(t.pending) == 0 {
		select {
		case <-t.closed:
			return 0, io.EOF
		case <-t.ctx.Done():
			return 0, io.EOF
		case <-t.ticker.C:
		}
		samples := GenerateSineWave(t.perTick, t.sample, t.freq, t.amp)
		t.sample += len(samples)
		t.pending = make([]byte, len(samples)*BytesPerSample)
		for i, s := range samples {
			binary.LittleEndian.PutUint16(t.pending[i*2:], uint16(s))
		}
	}
	n := copy(b, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *toneStream) Close() error {
	t.closeOnce.Do(func() {
		t.ticker.Stop()
		close(t.closed)
	})
	return nil
}
