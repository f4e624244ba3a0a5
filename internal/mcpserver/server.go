// Package mcpserver exposes job history and cached responses as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/jwulff/voiceclone/internal/backend"
	"github.com/jwulff/voiceclone/internal/db"
)

// Version is reported to MCP clients.
const Version = "1.0.0"

// Store is the read side of the local database.
type Store interface {
	LatestJob() (*db.Job, error)
	JobByID(id int) (*db.Job, error)
	RecentJobs(limit int) ([]db.Job, error)
	ResponsesForVoice(voiceID string) ([]db.Response, error)
}

// StatusChecker queries the backend for a live job status.
type StatusChecker interface {
	Status(ctx context.Context, id int) (backend.JobStatus, error)
}

// Handlers implements the tools. Backend and Avatars may be nil, in which
// case only local history is served.
type Handlers struct {
	Store   Store
	Backend StatusChecker
	Avatars Avatars
	Logger  *zap.Logger

	// AnimationPoll overrides DefaultAnimationPoll for wait=true.
	AnimationPoll time.Duration
}

// New builds an MCP server with every tool registered.
func New(h *Handlers) *server.MCPServer {
	s := server.NewMCPServer("voiceclone", Version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("latest_job",
		mcp.WithDescription("Return the most recently updated voice clone job from local history."),
	), h.LatestJob)

	s.AddTool(mcp.NewTool("recent_jobs",
		mcp.WithDescription("List recent voice clone jobs, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of jobs (default 10).")),
	), h.RecentJobs)

	s.AddTool(mcp.NewTool("job_status",
		mcp.WithDescription("Return the status of a job. With refresh=true the backend is asked directly."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Job identifier returned by the upload.")),
		mcp.WithBoolean("refresh", mcp.Description("Query the backend instead of local history.")),
	), h.JobStatus)

	s.AddTool(mcp.NewTool("list_responses",
		mcp.WithDescription("List cached responses for a voice. Defaults to the latest job's voice."),
		mcp.WithString("voice_id", mcp.Description("Voice identity; omit for the latest completed job.")),
	), h.ListResponses)

	h.addAvatarTools(s)
	return s
}

// LatestJob handles latest_job.
func (h *Handlers) LatestJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	job, err := h.Store.LatestJob()
	if err != nil {
		return h.fail("latest_job", err), nil
	}
	if job == nil {
		return mcp.NewToolResultText("No jobs recorded yet."), nil
	}
	return jsonResult(jobView(*job))
}

// RecentJobs handles recent_jobs.
func (h *Handlers) RecentJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}
	jobs, err := h.Store.RecentJobs(limit)
	if err != nil {
		return h.fail("recent_jobs", err), nil
	}
	views := make([]jobJSON, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, jobView(j))
	}
	return jsonResult(views)
}

// JobStatus handles job_status.
func (h *Handlers) JobStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if req.GetBool("refresh", false) {
		if h.Backend == nil {
			return mcp.NewToolResultError("backend not configured"), nil
		}
		st, err := h.Backend.Status(ctx, id)
		if err != nil {
			return h.fail("job_status", err), nil
		}
		return jsonResult(jobJSON{ID: st.ID, Status: string(st.Status), VoiceID: st.VoiceID, Source: "backend"})
	}

	job, err := h.Store.JobByID(id)
	if err != nil {
		return h.fail("job_status", err), nil
	}
	if job == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job %d not found", id)), nil
	}
	return jsonResult(jobView(*job))
}

// ListResponses handles list_responses.
func (h *Handlers) ListResponses(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	voiceID := req.GetString("voice_id", "")
	if voiceID == "" {
		job, err := h.Store.LatestJob()
		if err != nil {
			return h.fail("list_responses", err), nil
		}
		if job == nil || job.VoiceID == "" {
			return mcp.NewToolResultText("No completed job with a voice yet."), nil
		}
		voiceID = job.VoiceID
	}

	rows, err := h.Store.ResponsesForVoice(voiceID)
	if err != nil {
		return h.fail("list_responses", err), nil
	}
	out := responsesJSON{VoiceID: voiceID, Responses: make([]responseJSON, 0, len(rows))}
	for _, r := range rows {
		out.Responses = append(out.Responses, responseJSON{ID: r.ID, Question: r.Question, AudioURL: r.AudioURL})
	}
	return jsonResult(out)
}

func (h *Handlers) fail(tool string, err error) *mcp.CallToolResult {
	if h.Logger != nil {
		h.Logger.Warn("tool failed", zap.String("tool", tool), zap.Error(err))
	}
	return mcp.NewToolResultError(err.Error())
}

type jobJSON struct {
	ID        int    `json:"id"`
	Status    string `json:"status"`
	VoiceID   string `json:"voiceId,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
	Source    string `json:"source"`
}

type responseJSON struct {
	ID       int    `json:"id"`
	Question string `json:"question"`
	AudioURL string `json:"audioUrl"`
}

type responsesJSON struct {
	VoiceID   string         `json:"voiceId"`
	Responses []responseJSON `json:"responses"`
}

func jobView(j db.Job) jobJSON {
	const layout = "2006-01-02T15:04:05Z07:00"
	return jobJSON{
		ID:        j.ID,
		Status:    j.Status,
		VoiceID:   j.VoiceID,
		CreatedAt: j.CreatedAt.Format(layout),
		UpdatedAt: j.UpdatedAt.Format(layout),
		Source:    "history",
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
