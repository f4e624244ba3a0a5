// Package pipeline drives a finished clip through the backend: upload, poll
// the job until it is terminal, wait for response generation, then load the
// generated responses. Each step is callable on its own; Run chains them and
// reports progress as Events on a channel.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jwulff/voiceclone/internal/backend"
	"github.com/jwulff/voiceclone/internal/capture"
	"github.com/jwulff/voiceclone/internal/metrics"
	"github.com/jwulff/voiceclone/internal/responses"
)

const (
	// DefaultPollInterval spaces consecutive status checks.
	DefaultPollInterval = 2 * time.Second

	// DefaultCompletionDelay is the backend's response generation lag: clips
	// are not expected to exist until this long after a job reports
	// completed. It is imposed by the service and must not be shortened.
	DefaultCompletionDelay = 25 * time.Second
)

var (
	// ErrProcessingFailed means the backend reported the job as failed.
	ErrProcessingFailed = errors.New("processing failed")

	// ErrStatusCheckFailed means a status request itself failed. Polling
	// halts; the job may still be running remotely.
	ErrStatusCheckFailed = errors.New("status check failed")
)

// Backend is the subset of the service client the orchestrator uses.
type Backend interface {
	Upload(ctx context.Context, filename, mimeType string, data []byte) (int, error)
	Status(ctx context.Context, id int) (backend.JobStatus, error)
}

// Loader fetches the generated responses for a voice identity.
type Loader interface {
	Load(ctx context.Context, voiceID string) (responses.Result, error)
}

// JobRecorder persists job transitions.
type JobRecorder interface {
	SaveJob(job Job) error
}

// Job is the client's view of an uploaded clip.
type Job struct {
	ID        int
	Status    backend.JobState
	VoiceID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the job has finished.
func (j Job) Terminal() bool { return j.Status.Terminal() }

// Orchestrator owns the upload, polling, and completion timing policy.
type Orchestrator struct {
	backend  Backend
	loader   Loader
	recorder JobRecorder
	logger   *zap.Logger

	pollInterval    time.Duration
	completionDelay time.Duration
	now             func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.pollInterval = d }
}

// WithCompletionDelay overrides DefaultCompletionDelay.
func WithCompletionDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.completionDelay = d }
}

// WithRecorder persists every job transition to r.
func WithRecorder(r JobRecorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// New returns an orchestrator with the default timing contract.
func New(b Backend, l Loader, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:         b,
		loader:          l,
		logger:          logger,
		pollInterval:    DefaultPollInterval,
		completionDelay: DefaultCompletionDelay,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// PollInterval returns the configured status interval.
func (o *Orchestrator) PollInterval() time.Duration { return o.pollInterval }

// CompletionDelay returns the configured post-completion delay.
func (o *Orchestrator) CompletionDelay() time.Duration { return o.completionDelay }

// Upload sends clip and returns the new job. On failure no job exists and
// the same clip may be uploaded again.
func (o *Orchestrator) Upload(ctx context.Context, clip capture.Clip) (Job, error) {
	id, err := o.backend.Upload(ctx, clip.Filename, clip.MIMEType, clip.Data)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		o.logger.Warn("upload failed", zap.Int("bytes", clip.Size()), zap.Error(err))
		if !errors.Is(err, backend.ErrUploadFailed) {
			err = fmt.Errorf("%w: %v", backend.ErrUploadFailed, err)
		}
		return Job{}, err
	}
	metrics.UploadsTotal.WithLabelValues("ok").Inc()

	now := o.now()
	job := Job{ID: id, Status: backend.StatePending, CreatedAt: now, UpdatedAt: now}
	o.record(job)
	o.logger.Info("clip uploaded", zap.Int("job", id), zap.Int("bytes", clip.Size()))
	return job, nil
}

// errMissingVoiceID rejects a completion that names no voice to load.
var errMissingVoiceID = errors.New("completed without a voiceId")

// PollStatus checks the job every poll interval until it is terminal.
// onUpdate, if set, sees every status response. Checks never overlap. There
// is no attempt limit: a job that never leaves pending polls until ctx ends.
func (o *Orchestrator) PollStatus(ctx context.Context, job Job, onUpdate func(Job)) (Job, error) {
	final, err := Poll(ctx, o.pollInterval, func(ctx context.Context) (Job, bool, error) {
		metrics.StatusPollsTotal.Inc()
		st, err := o.backend.Status(ctx, job.ID)
		if err != nil {
			return job, false, err
		}
		if st.Status == backend.StateCompleted && st.VoiceID == "" {
			return job, false, errMissingVoiceID
		}
		if st.Status != job.Status || st.VoiceID != job.VoiceID {
			job.Status = st.Status
			job.VoiceID = st.VoiceID
			job.UpdatedAt = o.now()
			o.record(job)
		}
		if onUpdate != nil {
			onUpdate(job)
		}
		return job, job.Terminal(), nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return final, err
		}
		o.logger.Warn("status check failed", zap.Int("job", job.ID), zap.Error(err))
		return final, fmt.Errorf("%w: job %d: %v", ErrStatusCheckFailed, job.ID, err)
	}

	metrics.JobsTotal.WithLabelValues(string(final.Status)).Inc()
	metrics.JobDuration.Observe(final.UpdatedAt.Sub(final.CreatedAt).Seconds())

	if final.Status == backend.StateFailed {
		o.logger.Warn("job failed", zap.Int("job", final.ID))
		return final, fmt.Errorf("%w: job %d", ErrProcessingFailed, final.ID)
	}
	o.logger.Info("job completed", zap.Int("job", final.ID), zap.String("voiceId", final.VoiceID))
	return final, nil
}

// LoadAfterDelay waits the completion delay, then loads responses once.
func (o *Orchestrator) LoadAfterDelay(ctx context.Context, voiceID string) (responses.Result, error) {
	if err := sleep(ctx, o.completionDelay); err != nil {
		return responses.Result{VoiceID: voiceID, Empty: true}, err
	}
	return o.loader.Load(ctx, voiceID)
}

func (o *Orchestrator) record(job Job) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.SaveJob(job); err != nil {
		o.logger.Warn("record job", zap.Int("job", job.ID), zap.Error(err))
	}
}

// Poll calls check, waiting interval before each call, until check reports
// done, returns an error, or ctx ends.
func Poll[T any](ctx context.Context, interval time.Duration, check func(context.Context) (T, bool, error)) (T, error) {
	var last T
	for {
		if err := sleep(ctx, interval); err != nil {
			return last, err
		}
		v, done, err := check(ctx)
		last = v
		if err != nil {
			return last, err
		}
		if done {
			return last, nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
