package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwulff/voiceclone/internal/backend"
	"github.com/jwulff/voiceclone/internal/db"
	"github.com/jwulff/voiceclone/internal/pipeline"
)

type fakeStatus struct {
	status backend.JobStatus
	err    error
}

func (f fakeStatus) Status(ctx context.Context, id int) (backend.JobStatus, error) {
	st := f.status
	st.ID = id
	return st, f.err
}

func seededStore(t *testing.T) *db.Store {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "voiceclone.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	now := time.Now()
	require.NoError(t, store.SaveJob(pipeline.Job{ID: 41, Status: backend.StateFailed, CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, store.SaveJob(pipeline.Job{ID: 42, Status: backend.StateCompleted, VoiceID: "v1", CreatedAt: now}))
	require.NoError(t, store.ReplaceResponses("v1", []backend.ResponseClip{
		{ID: 1, Question: "How are you?", AudioURL: "/clips/1.wav"},
		{ID: 2, Question: "Where do you live?", AudioURL: "/clips/2.wav"},
	}))
	return store
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text
}

func TestLatestJob(t *testing.T) {
	h := &Handlers{Store: seededStore(t)}

	res, err := h.LatestJob(context.Background(), call(nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var got jobJSON
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.Equal(t, 42, got.ID)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, "v1", got.VoiceID)
	assert.Equal(t, "history", got.Source)
}

func TestLatestJobEmpty(t *testing.T) {
	store, err := db.Open(filepath.Join(t.TempDir(), "empty.sqlite"))
	require.NoError(t, err)
	defer store.Close()

	res, err := (&Handlers{Store: store}).LatestJob(context.Background(), call(nil))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "No jobs")
}

func TestRecentJobs(t *testing.T) {
	h := &Handlers{Store: seededStore(t)}

	res, err := h.RecentJobs(context.Background(), call(map[string]any{"limit": 1}))
	require.NoError(t, err)

	var got []jobJSON
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	require.Len(t, got, 1)
	assert.Equal(t, 42, got[0].ID)
}

func TestJobStatus(t *testing.T) {
	h := &Handlers{Store: seededStore(t)}

	res, err := h.JobStatus(context.Background(), call(map[string]any{"id": 41}))
	require.NoError(t, err)
	var got jobJSON
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.Equal(t, "failed", got.Status)

	res, err = h.JobStatus(context.Background(), call(map[string]any{"id": 99}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h.JobStatus(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "missing id should be a tool error")
}

func TestJobStatusRefresh(t *testing.T) {
	h := &Handlers{Store: seededStore(t)}

	res, err := h.JobStatus(context.Background(), call(map[string]any{"id": 42, "refresh": true}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "refresh without backend")

	h.Backend = fakeStatus{status: backend.JobStatus{Status: backend.StateProcessing}}
	res, err = h.JobStatus(context.Background(), call(map[string]any{"id": 42, "refresh": true}))
	require.NoError(t, err)
	var got jobJSON
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.Equal(t, "processing", got.Status)
	assert.Equal(t, "backend", got.Source)

	h.Backend = fakeStatus{err: errors.New("502")}
	res, err = h.JobStatus(context.Background(), call(map[string]any{"id": 42, "refresh": true}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestListResponses(t *testing.T) {
	h := &Handlers{Store: seededStore(t)}

	res, err := h.ListResponses(context.Background(), call(nil))
	require.NoError(t, err)
	var got responsesJSON
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.Equal(t, "v1", got.VoiceID)
	require.Len(t, got.Responses, 2)
	assert.Equal(t, "How are you?", got.Responses[0].Question)

	res, err = h.ListResponses(context.Background(), call(map[string]any{"voice_id": "unknown"}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.Empty(t, got.Responses)
}

func TestNewRegistersTools(t *testing.T) {
	s := New(&Handlers{Store: seededStore(t)})
	require.NotNil(t, s)
	tools := s.ListTools()
	for _, name := range []string{
		"latest_job", "recent_jobs", "job_status", "list_responses",
		"upload_avatar", "animate", "list_animations", "animation_status",
	} {
		assert.Contains(t, tools, name)
	}
}
