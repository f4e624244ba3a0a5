// Package playback plays response clips one at a time.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/jwulff/voiceclone/internal/metrics"
)

// ErrPlaybackFailed means both direct playback and the fetch fallback failed.
var ErrPlaybackFailed = errors.New("playback failed")

// Handle controls one playing clip.
type Handle interface {
	// Stop halts playback and releases the handle. Idempotent.
	Stop() error
	// Done is closed when playback ends for any reason.
	Done() <-chan struct{}
	// Err reports why playback ended once Done is closed. It is nil for a
	// clip that played to the end or was stopped.
	Err() error
}

// Player starts audio output.
type Player interface {
	PlayURL(ctx context.Context, location string) (Handle, error)
	PlayData(ctx context.Context, data []byte) (Handle, error)
}

// Fetcher downloads a clip for the fallback path.
type Fetcher interface {
	FetchAudio(ctx context.Context, location string) ([]byte, error)
}

// FetchCacheSize bounds how many fetched clips are kept in memory.
const FetchCacheSize = 16

// Arbiter keeps at most one clip active. Starting a clip stops the previous
// one first; playing the active clip again stops it.
//
// mu guards the active state and is never held across player or network
// I/O, so Active and Stop return immediately while a clip is starting.
// startMu serializes starts so two clips are never audible together.
type Arbiter struct {
	player  Player
	fetcher Fetcher
	logger  *zap.Logger
	fetched *lru.Cache[string, []byte]
	errs    chan error

	startMu sync.Mutex

	mu      sync.Mutex
	active  int
	playing bool
	handle  Handle
	cancel  context.CancelFunc
	gen     uint64
}

// NewArbiter returns an idle arbiter.
func NewArbiter(player Player, fetcher Fetcher, logger *zap.Logger) *Arbiter {
	// New only fails for a non-positive size.
	fetched, _ := lru.New[string, []byte](FetchCacheSize)
	return &Arbiter{
		player:  player,
		fetcher: fetcher,
		logger:  logger,
		fetched: fetched,
		errs:    make(chan error, 4),
	}
}

// Errors delivers ErrPlaybackFailed for clips that failed after Play had
// already reported them as playing.
func (a *Arbiter) Errors() <-chan error { return a.errs }

// Play toggles clip id. It returns true when id is now playing and false
// when the call stopped it, or when a later Play or Stop superseded it
// before it started.
func (a *Arbiter) Play(ctx context.Context, id int, location string) (bool, error) {
	a.mu.Lock()
	if a.playing && a.active == id {
		a.stopLocked()
		a.mu.Unlock()
		return false, nil
	}
	a.stopLocked()
	gen := a.claimLocked(id)
	startCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()
	defer cancel()

	a.startMu.Lock()
	defer a.startMu.Unlock()
	if !a.current(gen) {
		return false, nil
	}

	h, direct, err := a.start(startCtx, id, location)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen != gen {
		if h != nil {
			_ = h.Stop()
		}
		return false, nil
	}
	a.cancel = nil
	if err != nil {
		a.clearLocked()
		return false, err
	}
	a.handle = h
	go a.watch(gen, id, location, h, direct)
	return true, nil
}

// start tries the location directly and falls back to fetching the clip.
func (a *Arbiter) start(ctx context.Context, id int, location string) (Handle, bool, error) {
	h, err := a.player.PlayURL(ctx, location)
	if err == nil {
		metrics.PlaybackTotal.WithLabelValues("direct", "ok").Inc()
		return h, true, nil
	}
	metrics.PlaybackTotal.WithLabelValues("direct", "error").Inc()
	a.logger.Info("direct playback failed, fetching clip",
		zap.Int("clip", id), zap.String("location", location), zap.Error(err))

	h, err = a.fallback(ctx, id, location)
	return h, false, err
}

func (a *Arbiter) fallback(ctx context.Context, id int, location string) (Handle, error) {
	h, err := a.playFetched(ctx, location)
	if err != nil {
		metrics.PlaybackTotal.WithLabelValues("fallback", "error").Inc()
		a.logger.Warn("playback failed", zap.Int("clip", id), zap.Error(err))
		return nil, fmt.Errorf("%w: clip %d: %v", ErrPlaybackFailed, id, err)
	}
	metrics.PlaybackTotal.WithLabelValues("fallback", "ok").Inc()
	return h, nil
}

// playFetched plays the downloaded clip, reusing an earlier download of the
// same location.
func (a *Arbiter) playFetched(ctx context.Context, location string) (Handle, error) {
	data, ok := a.fetched.Get(location)
	if !ok {
		var err error
		data, err = a.fetcher.FetchAudio(ctx, location)
		if err != nil {
			return nil, err
		}
		a.fetched.Add(location, data)
	}
	return a.player.PlayData(ctx, data)
}

// ForgetFetched drops cached downloads, e.g. after responses are reloaded.
func (a *Arbiter) ForgetFetched() {
	a.fetched.Purge()
}

// watch follows a clip to its end. A direct stream that dies with an error
// gets the fetch fallback; any other failure is reported on Errors.
func (a *Arbiter) watch(gen uint64, id int, location string, h Handle, direct bool) {
	<-h.Done()
	err := h.Err()

	a.mu.Lock()
	if a.gen != gen {
		a.mu.Unlock()
		return
	}
	if err == nil || !direct {
		a.clearLocked()
		a.mu.Unlock()
		if err != nil {
			a.report(fmt.Errorf("%w: clip %d: %v", ErrPlaybackFailed, id, err))
		}
		return
	}
	metrics.PlaybackTotal.WithLabelValues("direct", "error").Inc()
	a.logger.Info("direct playback ended with error, fetching clip",
		zap.Int("clip", id), zap.String("location", location), zap.Error(err))
	a.handle = nil
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.mu.Unlock()
	defer cancel()

	a.startMu.Lock()
	defer a.startMu.Unlock()
	if !a.current(gen) {
		return
	}
	next, err := a.fallback(ctx, id, location)

	a.mu.Lock()
	if a.gen != gen {
		a.mu.Unlock()
		if next != nil {
			_ = next.Stop()
		}
		return
	}
	a.cancel = nil
	if err != nil {
		a.clearLocked()
		a.mu.Unlock()
		a.report(err)
		return
	}
	a.handle = next
	a.mu.Unlock()
	go a.watch(gen, id, location, next, false)
}

func (a *Arbiter) report(err error) {
	select {
	case a.errs <- err:
	default:
		a.logger.Warn("playback error dropped", zap.Error(err))
	}
}

func (a *Arbiter) current(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gen == gen
}

// Stop halts the active clip, if any, including one that is still starting.
func (a *Arbiter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

func (a *Arbiter) claimLocked(id int) uint64 {
	a.gen++
	a.active = id
	a.playing = true
	return a.gen
}

func (a *Arbiter) stopLocked() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.handle != nil {
		if err := a.handle.Stop(); err != nil {
			a.logger.Warn("stop playback", zap.Error(err))
		}
	}
	a.gen++
	a.clearLocked()
}

func (a *Arbiter) clearLocked() {
	a.playing = false
	a.active = 0
	a.handle = nil
	a.cancel = nil
}

// Active returns the clip that is playing or starting.
func (a *Arbiter) Active() (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active, a.playing
}
