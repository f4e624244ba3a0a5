package mcpserver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jwulff/voiceclone/internal/backend"
	"github.com/jwulff/voiceclone/internal/pipeline"
)

// Avatars is the backend's avatar animation API.
type Avatars interface {
	UploadAvatar(ctx context.Context, filename string, data []byte) (backend.Avatar, error)
	Animate(ctx context.Context, req backend.AnimateRequest) (backend.Animation, error)
	Animations(ctx context.Context, avatarID int) ([]backend.Animation, error)
	AnimationStatus(ctx context.Context, id int) (backend.Animation, error)
}

// DefaultAnimationPoll matches the clip job poll interval.
const DefaultAnimationPoll = 2 * time.Second

func (h *Handlers) addAvatarTools(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("upload_avatar",
		mcp.WithDescription("Upload a photo to animate with the cloned voice."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Local path of the image file.")),
	), h.UploadAvatar)

	s.AddTool(mcp.NewTool("animate",
		mcp.WithDescription("Start a lip-sync animation of an avatar speaking a response clip."),
		mcp.WithNumber("avatar_id", mcp.Required(), mcp.Description("Avatar returned by upload_avatar.")),
		mcp.WithString("audio_url", mcp.Required(), mcp.Description("Response clip location, as listed by list_responses.")),
		mcp.WithBoolean("wait", mcp.Description("Poll until the animation completes or fails.")),
	), h.Animate)

	s.AddTool(mcp.NewTool("list_animations",
		mcp.WithDescription("List the animations generated for an avatar."),
		mcp.WithNumber("avatar_id", mcp.Required()),
	), h.ListAnimations)

	s.AddTool(mcp.NewTool("animation_status",
		mcp.WithDescription("Return the state of an animation job."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Animation identifier.")),
		mcp.WithBoolean("wait", mcp.Description("Poll until the animation completes or fails.")),
	), h.AnimationStatus)
}

// UploadAvatar handles upload_avatar.
func (h *Handlers) UploadAvatar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.Avatars == nil {
		return mcp.NewToolResultError("backend not configured"), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read %s: %v", path, err)), nil
	}
	avatar, err := h.Avatars.UploadAvatar(ctx, filepath.Base(path), data)
	if err != nil {
		return h.fail("upload_avatar", err), nil
	}
	return jsonResult(avatar)
}

// Animate handles animate.
func (h *Handlers) Animate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.Avatars == nil {
		return mcp.NewToolResultError("backend not configured"), nil
	}
	avatarID, err := req.RequireInt("avatar_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	audioURL, err := req.RequireString("audio_url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	anim, err := h.Avatars.Animate(ctx, backend.AnimateRequest{AvatarID: avatarID, AudioURL: audioURL})
	if err != nil {
		return h.fail("animate", err), nil
	}
	if req.GetBool("wait", false) && !anim.Status.Terminal() {
		return h.waitAnimation(ctx, "animate", anim.ID)
	}
	return jsonResult(anim)
}

// ListAnimations handles list_animations.
func (h *Handlers) ListAnimations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.Avatars == nil {
		return mcp.NewToolResultError("backend not configured"), nil
	}
	avatarID, err := req.RequireInt("avatar_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	anims, err := h.Avatars.Animations(ctx, avatarID)
	if err != nil {
		return h.fail("list_animations", err), nil
	}
	if anims == nil {
		anims = []backend.Animation{}
	}
	return jsonResult(anims)
}

// AnimationStatus handles animation_status.
func (h *Handlers) AnimationStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.Avatars == nil {
		return mcp.NewToolResultError("backend not configured"), nil
	}
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.GetBool("wait", false) {
		return h.waitAnimation(ctx, "animation_status", id)
	}
	anim, err := h.Avatars.AnimationStatus(ctx, id)
	if err != nil {
		return h.fail("animation_status", err), nil
	}
	return jsonResult(anim)
}

func (h *Handlers) waitAnimation(ctx context.Context, tool string, id int) (*mcp.CallToolResult, error) {
	interval := h.AnimationPoll
	if interval <= 0 {
		interval = DefaultAnimationPoll
	}
	anim, err := pipeline.PollAnimation(ctx, h.Avatars, id, interval)
	if err != nil {
		return h.fail(tool, err), nil
	}
	return jsonResult(anim)
}
