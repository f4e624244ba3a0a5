// Package capture owns the microphone for a recording session. A Source reads
// PCM from a Device on its own goroutine, feeds an Analyser for live
// visualization, and accumulates fixed-size chunks that become the final clip.
package capture

import (
	"context"
	"errors"
	"io"
	"time"
)

// Audio format produced by every Device: PCM s16le, 16kHz, mono.
const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2
	BytesPerSecond = SampleRate * Channels * BytesPerSample
)

// Timeslice is the duration of audio carried by one accumulated chunk.
const Timeslice = 100 * time.Millisecond

// ChunkSize is the byte length of one Timeslice chunk (3200 bytes).
const ChunkSize = int(Timeslice * BytesPerSecond / time.Second)

var (
	// ErrDeviceUnavailable is returned when microphone access is denied or no
	// input device exists.
	ErrDeviceUnavailable = errors.New("audio input device unavailable")

	// ErrEmptyRecording is returned by Finalize when no audio was captured.
	ErrEmptyRecording = errors.New("no audio captured")

	// ErrNotReleased is returned by Finalize while the source is still live.
	ErrNotReleased = errors.New("capture source still acquired")
)

// Device opens a live PCM stream. Closing the stream releases the device.
type Device interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Clip is a finished recording ready for upload.
type Clip struct {
	Data     []byte
	MIMEType string
	Filename string
	Duration time.Duration
}

// Size returns the clip length in bytes.
func (c Clip) Size() int { return len(c.Data) }
