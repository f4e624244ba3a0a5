package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Source owns one Device for the lifetime of a recording session.
type Source struct {
	dev        Device
	transcoder Transcoder
	analyser   *Analyser
	logger     *zap.Logger

	mu        sync.Mutex
	chunks    [][]byte
	stream    io.ReadCloser
	cancel    context.CancelFunc
	done      chan struct{}
	acquired  bool
	released  bool
	startedAt time.Time
	readErr   error
}

// Option configures a Source.
type Option func(*Source)

// WithTranscoder replaces the default pass-through transcoder.
func WithTranscoder(t Transcoder) Option {
	return func(s *Source) { s.transcoder = t }
}

// NewSource creates an unacquired source for dev.
func NewSource(dev Device, logger *zap.Logger, opts ...Option) *Source {
	s := &Source{
		dev:        dev,
		transcoder: PassthroughTranscoder{},
		analyser:   NewAnalyser(),
		logger:     logger.With(zap.String("device", dev.Name())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire opens the device and starts the analysis tap and chunk encoder.
// ctx bounds the acquisition only; the stream lives until Release.
func (s *Source) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.acquired && !s.released {
		s.mu.Unlock()
		return fmt.Errorf("capture source already acquired")
	}
	s.mu.Unlock()

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := s.openStream(ctx, streamCtx)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	s.analyser.Reset()

	s.mu.Lock()
	s.chunks = nil
	s.readErr = nil
	s.stream = stream
	s.cancel = cancel
	s.done = make(chan struct{})
	s.acquired = true
	s.released = false
	s.startedAt = time.Now()
	done := s.done
	s.mu.Unlock()

	go s.readLoop(stream, done)

	s.logger.Info("capture acquired")
	return nil
}

// openStream opens the device, giving up when the acquisition ctx ends first.
func (s *Source) openStream(acquireCtx, streamCtx context.Context) (io.ReadCloser, error) {
	type result struct {
		stream io.ReadCloser
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		stream, err := s.dev.Open(streamCtx)
		ch <- result{stream, err}
	}()

	select {
	case r := <-ch:
		return r.stream, r.err
	case <-acquireCtx.Done():
		go func() {
			if r := <-ch; r.stream != nil {
				r.stream.Close()
			}
		}()
		return nil, acquireCtx.Err()
	}
}

// Release stops the stream and waits for the reader to drain. It is safe to
// call more than once and on a source that was never acquired.
func (s *Source) Release() error {
	s.mu.Lock()
	if !s.acquired || s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	stream, cancel, done := s.stream, s.cancel, s.done
	s.mu.Unlock()

	cancel()
	if err := stream.Close(); err != nil {
		s.logger.Warn("close capture stream", zap.Error(err))
	}
	<-done

	s.mu.Lock()
	chunks := len(s.chunks)
	s.mu.Unlock()
	s.logger.Info("capture released", zap.Int("chunks", chunks))
	return nil
}

// readLoop is the chunked encoder: every full Timeslice becomes one chunk.
func (s *Source) readLoop(r io.Reader, done chan struct{}) {
	defer close(done)

	buf := make([]byte, ChunkSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.analyser.Write(chunk)

			s.mu.Lock()
			s.chunks = append(s.chunks, chunk)
			s.mu.Unlock()
		}
		if err != nil {
			s.mu.Lock()
			released := s.released
			if !released && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.readErr = err
			}
			s.mu.Unlock()
			if !released {
				s.logger.Warn("capture stream ended", zap.Error(err))
			}
			return
		}
	}
}

// Frame returns the latest AnalysisFrame, reusing dst when possible.
func (s *Source) Frame(dst []byte) []byte { return s.analyser.Frame(dst) }

// Level returns the smoothed speech level in [0, 1].
func (s *Source) Level() float32 { return s.analyser.Level() }

// Chunks returns the number of chunks accumulated so far.
func (s *Source) Chunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// Err reports a stream failure seen before Release, if any.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readErr
}

// Finalize concatenates the accumulated chunks into a single clip. The source
// must be released first.
func (s *Source) Finalize() (Clip, error) {
	s.mu.Lock()
	if s.acquired && !s.released {
		s.mu.Unlock()
		return Clip{}, ErrNotReleased
	}
	pcm := bytes.Join(s.chunks, nil)
	startedAt := s.startedAt
	s.mu.Unlock()

	if len(pcm) == 0 {
		return Clip{}, ErrEmptyRecording
	}

	wav := EncodeWAV(pcm, SampleRate, Channels)
	data, mimeType, err := s.transcoder.Transcode(wav, "audio/wav")
	if err != nil {
		return Clip{}, fmt.Errorf("transcode clip: %w", err)
	}

	clip := Clip{
		Data:     data,
		MIMEType: mimeType,
		Filename: fmt.Sprintf("recording-%s.wav", startedAt.Format("20060102-150405")),
		Duration: time.Duration(len(pcm)) * time.Second / BytesPerSecond,
	}
	s.logger.Info("clip finalized",
		zap.Int("bytes", len(clip.Data)),
		zap.Duration("duration", clip.Duration))
	return clip, nil
}
