package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jwulff/voiceclone/internal/backend"
	"github.com/jwulff/voiceclone/internal/capture"
	"github.com/jwulff/voiceclone/internal/db"
	"github.com/jwulff/voiceclone/internal/pipeline"
	"github.com/jwulff/voiceclone/internal/recorder"
	"github.com/jwulff/voiceclone/internal/responses"
	"github.com/jwulff/voiceclone/internal/waveform"
)

const (
	frameInterval  = 33 * time.Millisecond
	clockInterval  = time.Second
	watchInterval  = 250 * time.Millisecond
	transientDelay = 5 * time.Second

	waveHeight = 9
)

// Recorder is the recording session controller.
type Recorder interface {
	Start(ctx context.Context) (string, error)
	Tick(session string) recorder.TickResult
	Stop() (capture.Clip, error)
	State() recorder.State
	MaxSeconds() int
	Frame(dst []byte) []byte
	Level() float32
}

// Pipeline runs uploads and follows jobs.
type Pipeline interface {
	Run(ctx context.Context, clip capture.Clip) <-chan pipeline.Event
	Resume(ctx context.Context, job pipeline.Job) <-chan pipeline.Event
}

// ResponseLoader reloads responses on demand.
type ResponseLoader interface {
	Load(ctx context.Context, voiceID string) (responses.Result, error)
}

// Player toggles response clips, one at a time.
type Player interface {
	Play(ctx context.Context, id int, location string) (bool, error)
	Stop()
	Active() (int, bool)
	// ForgetFetched drops clips downloaded for an earlier response set.
	ForgetFetched()
	// Errors reports clips that failed after they started playing.
	Errors() <-chan error
}

// History looks up the last job from a previous run.
type History interface {
	LatestJob() (*db.Job, error)
}

// Deps are the collaborators the UI drives. History is optional.
type Deps struct {
	Recorder Recorder
	Renderer *waveform.Renderer
	Pipeline Pipeline
	Loader   ResponseLoader
	Player   Player
	History  History
	Logger   *zap.Logger
	Device   string
}

// Model is the root bubbletea model for the voiceclone TUI.
type Model struct {
	deps      Deps
	ctx       context.Context
	cancelRun context.CancelFunc

	// Recording state
	recState  recorder.State
	starting  bool
	stopping  bool
	sessionID string
	elapsed   int
	level     float32
	clip      *capture.Clip
	surface   *waveform.CellSurface
	frame     []byte

	// Pipeline
	events            <-chan pipeline.Event
	job               *pipeline.Job
	awaitingResponses bool

	// Responses and playback
	voiceID        string
	clips          []backend.ResponseClip
	responsesEmpty bool
	loading        bool
	selected       int
	activeID       int
	playing        bool
	watching       bool
	listening      bool

	// UI state
	width  int
	height int

	// Errors
	errorMessage   string
	errorTransient bool

	// Status
	statusText string
}

// New creates a new Model. ctx bounds every background operation.
func New(ctx context.Context, deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Renderer == nil {
		deps.Renderer = waveform.NewRenderer()
	}
	return Model{
		deps:       deps,
		ctx:        ctx,
		surface:    waveform.NewCellSurface(0, waveHeight),
		frame:      make([]byte, capture.FFTSize),
		statusText: "Idle",
	}
}

// Init loads the last job from history, if any.
func (m Model) Init() tea.Cmd {
	if m.deps.History == nil {
		return nil
	}
	return loadHistoryCmd(m.deps.History)
}

// startRecordingCmd acquires the device and starts a session.
func startRecordingCmd(ctx context.Context, rec Recorder) tea.Cmd {
	return func() tea.Msg {
		id, err := rec.Start(ctx)
		return RecordingStartedMsg{SessionID: id, Err: err}
	}
}

// stopRecordingCmd releases the device and finalizes the clip.
func stopRecordingCmd(rec Recorder) tea.Cmd {
	return func() tea.Msg {
		clip, err := rec.Stop()
		return RecordingStoppedMsg{Clip: clip, Err: err}
	}
}

// clockTickCmd advances the recording clock after one second.
func clockTickCmd(rec Recorder, session string) tea.Cmd {
	return tea.Tick(clockInterval, func(time.Time) tea.Msg {
		return ClockTickMsg{SessionID: session, Result: rec.Tick(session)}
	})
}

// frameTickCmd schedules the next waveform redraw.
func frameTickCmd(session string) tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg {
		return FrameTickMsg{SessionID: session}
	})
}

// readEventCmd reads the next pipeline event.
func readEventCmd(events <-chan pipeline.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return PipelineDoneMsg{}
		}
		return PipelineEventMsg{Event: ev}
	}
}

// loadResponsesCmd reloads the responses for voiceID.
func loadResponsesCmd(ctx context.Context, loader ResponseLoader, voiceID string) tea.Cmd {
	return func() tea.Msg {
		res, err := loader.Load(ctx, voiceID)
		return ResponsesLoadedMsg{Result: res, Err: err}
	}
}

// playCmd toggles a clip. Fallback fetches can block, so it runs off the
// update loop.
func playCmd(ctx context.Context, player Player, id int, location string) tea.Cmd {
	return func() tea.Msg {
		playing, err := player.Play(ctx, id, location)
		return PlaybackMsg{ID: id, Playing: playing, Err: err}
	}
}

// watchPlaybackCmd polls the arbiter for the end of the active clip.
func watchPlaybackCmd() tea.Cmd {
	return tea.Tick(watchInterval, func(time.Time) tea.Msg {
		return PlaybackWatchMsg{}
	})
}

// playbackErrorCmd waits for a clip to fail mid-playback.
func playbackErrorCmd(errs <-chan error) tea.Cmd {
	if errs == nil {
		return nil
	}
	return func() tea.Msg {
		return PlaybackFailedMsg{Err: <-errs}
	}
}

// loadHistoryCmd reads the latest job from SQLite.
func loadHistoryCmd(h History) tea.Cmd {
	return func() tea.Msg {
		job, err := h.LatestJob()
		if err != nil {
			return HistoryLoadedMsg{} // history is best effort
		}
		return HistoryLoadedMsg{Job: job}
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(transientDelay, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.surface = waveform.NewCellSurface(m.waveWidth(), waveHeight)
		return m, nil

	case RecordingStartedMsg:
		m.starting = false
		if msg.Err != nil {
			m.recState = recorder.Idle
			m.clip = nil
			m.statusText = "Idle"
			if errors.Is(msg.Err, context.Canceled) {
				return m, nil
			}
			cmd := m.setError("Microphone unavailable: "+msg.Err.Error(), true)
			return m, cmd
		}
		m.recState = recorder.Capturing
		m.sessionID = msg.SessionID
		m.elapsed = 0
		m.level = 0
		m.clip = nil
		m.surface = waveform.NewCellSurface(m.waveWidth(), waveHeight)
		m.statusText = "Recording"
		return m, tea.Batch(
			clockTickCmd(m.deps.Recorder, m.sessionID),
			frameTickCmd(m.sessionID),
		)

	case ClockTickMsg:
		if msg.SessionID != m.sessionID || msg.Result.Stale {
			return m, nil
		}
		m.elapsed = msg.Result.Elapsed
		if msg.Result.AutoStopped {
			cmd := m.finishRecording(msg.Result.Clip, msg.Result.Err, true)
			return m, cmd
		}
		return m, clockTickCmd(m.deps.Recorder, m.sessionID)

	case FrameTickMsg:
		if msg.SessionID != m.sessionID || m.recState != recorder.Capturing {
			return m, nil
		}
		if frame := m.deps.Recorder.Frame(m.frame); frame != nil {
			m.frame = frame
			m.deps.Renderer.Draw(frame, m.surface)
		}
		m.level = m.deps.Recorder.Level()
		return m, frameTickCmd(m.sessionID)

	case RecordingStoppedMsg:
		cmd := m.finishRecording(msg.Clip, msg.Err, msg.Auto)
		return m, cmd

	case PipelineEventMsg:
		cmd := m.handlePipelineEvent(msg.Event)
		return m, tea.Batch(cmd, readEventCmd(m.events))

	case PipelineDoneMsg:
		m.events = nil
		m.awaitingResponses = false
		return m, nil

	case ResponsesLoadedMsg:
		m.loading = false
		cmd := m.applyResponses(msg.Result, msg.Err)
		return m, cmd

	case PlaybackMsg:
		if msg.Err != nil {
			m.playing = false
			m.activeID = 0
			cmd := m.setError("Playback failed: "+msg.Err.Error(), true)
			return m, cmd
		}
		m.playing = msg.Playing
		m.activeID = 0
		if !msg.Playing {
			return m, nil
		}
		m.activeID = msg.ID
		var cmds []tea.Cmd
		if !m.watching {
			m.watching = true
			cmds = append(cmds, watchPlaybackCmd())
		}
		if !m.listening {
			m.listening = true
			cmds = append(cmds, playbackErrorCmd(m.deps.Player.Errors()))
		}
		return m, tea.Batch(cmds...)

	case PlaybackFailedMsg:
		id, ok := m.deps.Player.Active()
		m.playing = ok
		m.activeID = 0
		if ok {
			m.activeID = id
		}
		cmd := m.setError("Playback failed: "+msg.Err.Error(), true)
		return m, tea.Batch(cmd, playbackErrorCmd(m.deps.Player.Errors()))

	case PlaybackWatchMsg:
		id, ok := m.deps.Player.Active()
		m.playing = ok
		m.activeID = 0
		if ok {
			m.activeID = id
			return m, watchPlaybackCmd()
		}
		m.watching = false
		return m, nil

	case HistoryLoadedMsg:
		cmd := m.resumeJob(msg.Job)
		return m, cmd

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	return m, nil
}

// finishRecording applies the outcome of a Stop, manual or automatic.
func (m *Model) finishRecording(clip capture.Clip, err error, auto bool) tea.Cmd {
	m.stopping = false
	if errors.Is(err, recorder.ErrNotCapturing) {
		// The other stop path got there first.
		return nil
	}
	if m.recState == recorder.Capturing {
		m.deps.Renderer.Clear(m.surface)
	}
	m.recState = recorder.Stopped
	m.level = 0

	if err != nil {
		m.clip = nil
		m.statusText = "Stopped"
		return m.setError("Recording failed: "+err.Error(), true)
	}
	m.clip = &clip
	prefix := "Recorded"
	if auto {
		prefix = "Time limit reached. Recorded"
	}
	m.statusText = fmt.Sprintf("%s %s. Enter to submit", prefix, formatClock(int(clip.Duration.Seconds())))
	return nil
}

// handlePipelineEvent updates job and response state for one event.
func (m *Model) handlePipelineEvent(ev pipeline.Event) tea.Cmd {
	switch ev.Kind {
	case pipeline.EventUploaded:
		job := ev.Job
		m.job = &job
		m.statusText = fmt.Sprintf("Uploaded as job #%d", job.ID)

	case pipeline.EventStatus:
		job := ev.Job
		m.job = &job

	case pipeline.EventCompleted:
		job := ev.Job
		m.job = &job
		m.voiceID = job.VoiceID
		m.awaitingResponses = true
		m.statusText = "Voice ready. Generating responses..."

	case pipeline.EventResponses:
		m.awaitingResponses = false
		return m.applyResponses(ev.Responses, ev.Err)

	case pipeline.EventFailed:
		if ev.Job.ID != 0 {
			job := ev.Job
			m.job = &job
		}
		switch {
		case errors.Is(ev.Err, backend.ErrUploadFailed):
			m.statusText = "Upload failed"
			return m.setError("Upload failed. Press Enter to retry", true)
		case errors.Is(ev.Err, pipeline.ErrProcessingFailed):
			m.statusText = "Processing failed"
			return m.setError("Voice processing failed. Record a new clip to try again", false)
		default:
			m.statusText = "Status unknown"
			return m.setError("Lost track of job: "+ev.Err.Error(), false)
		}
	}
	return nil
}

// applyResponses replaces the held collection with a load result.
func (m *Model) applyResponses(res responses.Result, err error) tea.Cmd {
	if res.VoiceID != "" {
		m.voiceID = res.VoiceID
	}
	if err != nil {
		m.clips = nil
		m.selected = 0
		m.responsesEmpty = false
		m.statusText = "Responses unavailable"
		return m.setError("Could not load responses. Press r to retry", true)
	}
	m.deps.Player.ForgetFetched()
	m.clips = res.Clips
	m.responsesEmpty = res.Empty
	if m.selected >= len(m.clips) {
		m.selected = max(0, len(m.clips)-1)
	}
	if res.Empty {
		m.statusText = "No responses yet. Press r to reload"
	} else {
		m.statusText = fmt.Sprintf("%d responses ready", len(m.clips))
	}
	return nil
}

// resumeJob picks up where a previous run left off.
func (m *Model) resumeJob(stored *db.Job) tea.Cmd {
	if stored == nil || m.events != nil || m.job != nil {
		return nil
	}
	job := stored.PipelineJob()
	m.job = &job

	switch {
	case job.Status == backend.StateCompleted && job.VoiceID != "":
		m.voiceID = job.VoiceID
		m.loading = true
		m.statusText = fmt.Sprintf("Loading responses for job #%d", job.ID)
		return loadResponsesCmd(m.ctx, m.deps.Loader, job.VoiceID)
	case !job.Terminal():
		m.statusText = fmt.Sprintf("Resuming job #%d", job.ID)
		return m.follow(m.deps.Pipeline.Resume(m.runContext(), job))
	}
	return nil
}

// submit uploads the held clip, abandoning any pipeline still running.
func (m *Model) submit() tea.Cmd {
	m.job = nil
	m.awaitingResponses = false
	m.statusText = "Uploading..."
	return m.follow(m.deps.Pipeline.Run(m.runContext(), *m.clip))
}

func (m *Model) follow(events <-chan pipeline.Event) tea.Cmd {
	m.events = events
	return readEventCmd(events)
}

func (m *Model) runContext() context.Context {
	if m.cancelRun != nil {
		m.cancelRun()
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelRun = cancel
	return ctx
}

func (m *Model) setError(msg string, transient bool) tea.Cmd {
	m.errorMessage = msg
	m.errorTransient = transient
	m.deps.Logger.Info("ui error", zap.String("message", msg))
	if transient {
		return clearTransientErrorCmd()
	}
	return nil
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		m.shutdown()
		return m, tea.Quit

	case KeySpace:
		if m.starting || m.stopping {
			return m, nil
		}
		if m.recState == recorder.Capturing {
			m.stopping = true
			m.statusText = "Stopping..."
			return m, stopRecordingCmd(m.deps.Recorder)
		}
		m.starting = true
		m.statusText = "Opening microphone..."
		return m, startRecordingCmd(m.ctx, m.deps.Recorder)

	case KeyEnter:
		if m.recState == recorder.Capturing || m.clip == nil {
			return m, nil
		}
		if m.events != nil {
			cmd := m.setError("A clip is already being processed", true)
			return m, cmd
		}
		cmd := m.submit()
		return m, cmd

	case KeyJ, KeyDown:
		if m.selected < len(m.clips)-1 {
			m.selected++
		}
		return m, nil

	case KeyK, KeyUp:
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case KeyPlay:
		if m.selected >= len(m.clips) {
			return m, nil
		}
		c := m.clips[m.selected]
		return m, playCmd(m.ctx, m.deps.Player, c.ID, c.AudioURL)

	case KeyStop:
		m.deps.Player.Stop()
		m.playing = false
		m.activeID = 0
		return m, nil

	case KeyReload:
		if m.voiceID == "" || m.loading {
			return m, nil
		}
		m.loading = true
		m.statusText = "Reloading responses..."
		return m, loadResponsesCmd(m.ctx, m.deps.Loader, m.voiceID)
	}

	return m, nil
}

// shutdown stops everything that owns a device or a process.
func (m *Model) shutdown() {
	if m.cancelRun != nil {
		m.cancelRun()
	}
	m.deps.Player.Stop()
	if m.recState == recorder.Capturing {
		if _, err := m.deps.Recorder.Stop(); err != nil && !errors.Is(err, recorder.ErrNotCapturing) {
			m.deps.Logger.Warn("stop on quit", zap.Error(err))
		}
	}
}

func (m Model) waveWidth() int {
	if m.width == 0 {
		return 60
	}
	return max(10, m.width-4)
}

func formatClock(sec int) string {
	return fmt.Sprintf("%02d:%02d", sec/60, sec%60)
}
