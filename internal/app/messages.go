package app

import (
	"github.com/jwulff/voiceclone/internal/capture"
	"github.com/jwulff/voiceclone/internal/db"
	"github.com/jwulff/voiceclone/internal/pipeline"
	"github.com/jwulff/voiceclone/internal/recorder"
	"github.com/jwulff/voiceclone/internal/responses"
)

// RecordingStartedMsg carries the result of acquiring the device.
type RecordingStartedMsg struct {
	SessionID string
	Err       error
}

// RecordingStoppedMsg carries the finalized clip of a stopped session.
type RecordingStoppedMsg struct {
	Clip capture.Clip
	Err  error
	Auto bool // stopped by the 60 s ceiling
}

// ClockTickMsg is the one-second recording clock. Result is the effect of
// the tick, already applied to the recorder.
type ClockTickMsg struct {
	SessionID string
	Result    recorder.TickResult
}

// FrameTickMsg requests a waveform redraw for a session.
type FrameTickMsg struct {
	SessionID string
}

// PipelineEventMsg wraps one event from a running pipeline.
type PipelineEventMsg struct {
	Event pipeline.Event
}

// PipelineDoneMsg is sent when the pipeline's event channel closes.
type PipelineDoneMsg struct{}

// ResponsesLoadedMsg carries the result of a manual reload.
type ResponsesLoadedMsg struct {
	Result responses.Result
	Err    error
}

// PlaybackMsg reports the outcome of toggling a clip.
type PlaybackMsg struct {
	ID      int
	Playing bool
	Err     error
}

// PlaybackFailedMsg reports a clip that failed after it started, once both
// the direct stream and the fetched copy have been tried.
type PlaybackFailedMsg struct {
	Err error
}

// PlaybackWatchMsg polls the arbiter so natural clip endings show up.
type PlaybackWatchMsg struct{}

// HistoryLoadedMsg carries the last job found in local history.
type HistoryLoadedMsg struct {
	Job *db.Job
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}
