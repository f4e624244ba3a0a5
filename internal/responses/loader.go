// Package responses loads the generated response clips for a voice identity.
package responses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jwulff/voiceclone/internal/backend"
	"github.com/jwulff/voiceclone/internal/metrics"
)

// ErrLoadFailed is a transport or server error while fetching responses.
// It is distinct from an empty result, which means "nothing generated yet".
var ErrLoadFailed = errors.New("load responses failed")

// Fetcher returns the raw response-list body for a voice identity.
type Fetcher interface {
	ChatResponses(ctx context.Context, voiceID string) ([]byte, error)
}

// Recorder mirrors each loaded collection, e.g. into the local store.
type Recorder interface {
	ReplaceResponses(voiceID string, clips []backend.ResponseClip) error
}

// Result is the outcome of one Load.
type Result struct {
	VoiceID string
	Clips   []backend.ResponseClip
	Empty   bool
}

// Loader holds the current response collection. Every Load replaces it.
type Loader struct {
	fetcher  Fetcher
	recorder Recorder
	logger   *zap.Logger

	mu      sync.Mutex
	voiceID string
	clips   []backend.ResponseClip
	loads   int
}

// Option configures a Loader.
type Option func(*Loader)

// WithRecorder mirrors loaded collections to r.
func WithRecorder(r Recorder) Option {
	return func(l *Loader) { l.recorder = r }
}

// NewLoader returns an empty loader.
func NewLoader(f Fetcher, logger *zap.Logger, opts ...Option) *Loader {
	l := &Loader{fetcher: f, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches the full collection for voiceID. Empty or malformed payloads
// produce an Empty result, not an error. On ErrLoadFailed the held
// collection is cleared.
func (l *Loader) Load(ctx context.Context, voiceID string) (Result, error) {
	l.mu.Lock()
	l.loads++
	l.mu.Unlock()

	body, err := l.fetcher.ChatResponses(ctx, voiceID)
	if err != nil {
		l.replace(voiceID, nil)
		metrics.ResponseLoadsTotal.WithLabelValues("error").Inc()
		l.logger.Warn("load responses", zap.String("voiceId", voiceID), zap.Error(err))
		return Result{VoiceID: voiceID, Empty: true}, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	clips := Decode(body)
	l.replace(voiceID, clips)

	if l.recorder != nil {
		if err := l.recorder.ReplaceResponses(voiceID, clips); err != nil {
			l.logger.Warn("record responses", zap.Error(err))
		}
	}

	outcome := "ok"
	if len(clips) == 0 {
		outcome = "empty"
	}
	metrics.ResponseLoadsTotal.WithLabelValues(outcome).Inc()
	l.logger.Info("responses loaded", zap.String("voiceId", voiceID), zap.Int("count", len(clips)))

	return Result{VoiceID: voiceID, Clips: clone(clips), Empty: len(clips) == 0}, nil
}

// Decode parses a response-list body, treating anything that is not a JSON
// array of clips as zero results.
func Decode(body []byte) []backend.ResponseClip {
	var clips []backend.ResponseClip
	if err := json.Unmarshal(body, &clips); err != nil {
		return nil
	}
	return clips
}

func (l *Loader) replace(voiceID string, clips []backend.ResponseClip) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.voiceID = voiceID
	l.clips = clone(clips)
}

// Clips returns a copy of the current collection.
func (l *Loader) Clips() []backend.ResponseClip {
	l.mu.Lock()
	defer l.mu.Unlock()
	return clone(l.clips)
}

// VoiceID returns the identity of the current collection.
func (l *Loader) VoiceID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.voiceID
}

// Loads counts Load calls.
func (l *Loader) Loads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

func clone(clips []backend.ResponseClip) []backend.ResponseClip {
	if clips == nil {
		return nil
	}
	return append([]backend.ResponseClip(nil), clips...)
}
