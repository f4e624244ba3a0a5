package pipeline

import (
	"context"

	"github.com/jwulff/voiceclone/internal/backend"
	"github.com/jwulff/voiceclone/internal/capture"
	"github.com/jwulff/voiceclone/internal/responses"
)

// EventKind identifies a pipeline transition.
type EventKind int

const (
	EventUploaded EventKind = iota
	EventStatus
	EventCompleted
	EventResponses
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventUploaded:
		return "uploaded"
	case EventStatus:
		return "status"
	case EventCompleted:
		return "completed"
	case EventResponses:
		return "responses"
	case EventFailed:
		return "failed"
	}
	return "unknown"
}

// Event is one transition of a running pipeline. Err is set on EventFailed
// and on an EventResponses whose load failed.
type Event struct {
	Kind      EventKind
	Job       Job
	Responses responses.Result
	Err       error
}

// Run uploads clip and follows the job to its responses. The channel is
// closed after the last event. Cancelling ctx abandons the pipeline without
// a final event; an upload already sent still completes remotely.
func (o *Orchestrator) Run(ctx context.Context, clip capture.Clip) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		job, err := o.Upload(ctx, clip)
		if err != nil {
			emit(ctx, events, Event{Kind: EventFailed, Err: err})
			return
		}
		if !emit(ctx, events, Event{Kind: EventUploaded, Job: job}) {
			return
		}
		o.follow(ctx, job, events)
	}()
	return events
}

// Resume follows an already uploaded job, e.g. one restored from history.
func (o *Orchestrator) Resume(ctx context.Context, job Job) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		o.follow(ctx, job, events)
	}()
	return events
}

func (o *Orchestrator) follow(ctx context.Context, job Job, events chan<- Event) {
	if !job.Terminal() {
		final, err := o.PollStatus(ctx, job, func(j Job) {
			emit(ctx, events, Event{Kind: EventStatus, Job: j})
		})
		if err != nil {
			if ctx.Err() == nil {
				emit(ctx, events, Event{Kind: EventFailed, Job: final, Err: err})
			}
			return
		}
		job = final
	} else if job.Status != backend.StateCompleted {
		emit(ctx, events, Event{Kind: EventFailed, Job: job, Err: ErrProcessingFailed})
		return
	}

	if !emit(ctx, events, Event{Kind: EventCompleted, Job: job}) {
		return
	}

	res, err := o.LoadAfterDelay(ctx, job.VoiceID)
	if ctx.Err() != nil {
		return
	}
	emit(ctx, events, Event{Kind: EventResponses, Job: job, Responses: res, Err: err})
}

func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
