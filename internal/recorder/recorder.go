// Package recorder is the recording session state machine. It owns the
// capture source for one session at a time and enforces the recording ceiling.
package recorder

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jwulff/voiceclone/internal/capture"
	"github.com/jwulff/voiceclone/internal/metrics"
)

// MaxSeconds is the recording ceiling; the tick that reaches it stops the session.
const MaxSeconds = 60

// State is the controller's lifecycle state.
type State int

const (
	Idle State = iota
	Capturing
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

var (
	// ErrNotCapturing is returned by Stop when there is no live session,
	// including every Stop after the first one for a session.
	ErrNotCapturing = errors.New("not capturing")

	// ErrAlreadyCapturing is returned by Start while a session is live.
	ErrAlreadyCapturing = errors.New("already capturing")
)

// Capturer is the capture resource the controller drives.
type Capturer interface {
	Acquire(ctx context.Context) error
	Release() error
	Finalize() (capture.Clip, error)
	Frame(dst []byte) []byte
	Level() float32
}

// TickResult reports the effect of one clock tick.
type TickResult struct {
	Elapsed     int
	Stale       bool // tick belonged to another session or arrived after stop
	AutoStopped bool
	Clip        capture.Clip
	Err         error
}

// Controller coordinates the capture source and the one-second clock.
type Controller struct {
	src        Capturer
	maxSeconds int
	logger     *zap.Logger

	mu       sync.Mutex
	state    State
	starting bool
	stopping bool
	elapsed  int
	session  string
	clip     *capture.Clip
}

// New returns an idle controller.
func New(src Capturer, logger *zap.Logger) *Controller {
	return &Controller{
		src:        src,
		maxSeconds: MaxSeconds,
		logger:     logger,
	}
}

// Start acquires the device and begins a new session, discarding any clip
// held from the previous one. On failure the controller is Idle.
func (c *Controller) Start(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state == Capturing || c.starting {
		c.mu.Unlock()
		return "", ErrAlreadyCapturing
	}
	c.starting = true
	c.clip = nil
	c.mu.Unlock()

	err := c.src.Acquire(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.starting = false
	if err != nil {
		c.state = Idle
		c.elapsed = 0
		c.session = ""
		outcome := "device_unavailable"
		if ctx.Err() != nil {
			outcome = "cancelled"
		}
		metrics.RecordingsTotal.WithLabelValues(outcome).Inc()
		c.logger.Warn("recording start failed", zap.Error(err))
		return "", err
	}

	c.state = Capturing
	c.stopping = false
	c.elapsed = 0
	c.session = uuid.NewString()
	c.logger.Info("recording started", zap.String("session", c.session))
	return c.session, nil
}

// Tick advances the clock for session by one second. The tick that reaches
// the ceiling stops the session and carries the clip.
func (c *Controller) Tick(session string) TickResult {
	c.mu.Lock()
	if c.state != Capturing || c.stopping || session != c.session {
		res := TickResult{Elapsed: c.elapsed, Stale: true}
		c.mu.Unlock()
		return res
	}
	if c.elapsed < c.maxSeconds {
		c.elapsed++
	}
	elapsed := c.elapsed
	reached := elapsed >= c.maxSeconds
	c.mu.Unlock()

	if !reached {
		return TickResult{Elapsed: elapsed}
	}

	c.logger.Info("recording ceiling reached", zap.Int("seconds", elapsed))
	clip, err := c.Stop()
	if errors.Is(err, ErrNotCapturing) {
		return TickResult{Elapsed: elapsed, Stale: true}
	}
	return TickResult{Elapsed: elapsed, AutoStopped: true, Clip: clip, Err: err}
}

// Stop releases the device, then finalizes the clip. Only the first Stop of
// a session has any effect.
func (c *Controller) Stop() (capture.Clip, error) {
	c.mu.Lock()
	if c.state != Capturing || c.stopping {
		c.mu.Unlock()
		return capture.Clip{}, ErrNotCapturing
	}
	c.stopping = true
	session := c.session
	c.mu.Unlock()

	if err := c.src.Release(); err != nil {
		c.logger.Warn("release capture", zap.Error(err))
	}
	// Finalize before publishing Stopped so a new Start cannot reset the
	// source while this session's chunks are still being encoded.
	clip, err := c.src.Finalize()

	c.mu.Lock()
	c.state = Stopped
	c.stopping = false
	if err == nil && c.session == session {
		c.clip = &clip
	}
	c.mu.Unlock()

	if err != nil {
		metrics.RecordingsTotal.WithLabelValues("finalize_failed").Inc()
		c.logger.Warn("finalize recording", zap.String("session", session), zap.Error(err))
		return capture.Clip{}, err
	}

	metrics.RecordingsTotal.WithLabelValues("ok").Inc()
	metrics.RecordingSeconds.Observe(clip.Duration.Seconds())
	c.logger.Info("recording stopped",
		zap.String("session", session),
		zap.Int("bytes", clip.Size()))
	return clip, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Elapsed returns whole seconds recorded in the current session.
func (c *Controller) Elapsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// MaxSeconds returns the recording ceiling.
func (c *Controller) MaxSeconds() int { return c.maxSeconds }

// SessionID returns the id of the current or last session.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Clip returns the finalized clip of the last stopped session.
func (c *Controller) Clip() (capture.Clip, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clip == nil {
		return capture.Clip{}, false
	}
	return *c.clip, true
}

// Frame returns the live analysis frame, or nil when not capturing.
func (c *Controller) Frame(dst []byte) []byte {
	if c.State() != Capturing {
		return nil
	}
	return c.src.Frame(dst)
}

// Level returns the live speech level, or 0 when not capturing.
func (c *Controller) Level() float32 {
	if c.State() != Capturing {
		return 0
	}
	return c.src.Level()
}
