package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrUploadFailed is returned when the backend does not accept a clip.
var ErrUploadFailed = errors.New("upload failed")

// HTTPError is a non-2xx response.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client talks to the voice cloning service over HTTP.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient returns a client for opts.BaseURL.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "voiceclone"
	}
	rc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetLogger(logger.Sugar())
	return &Client{http: rc, logger: logger}
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string { return c.http.BaseURL }

// Upload sends a clip as multipart field "file" and returns the job id.
// Any failure wraps ErrUploadFailed; no job exists afterwards.
func (c *Client) Upload(ctx context.Context, filename, mimeType string, data []byte) (int, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("file", filename, mimeType, bytes.NewReader(data)).
		Post("/audio/upload")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("%w: %v", ErrUploadFailed, httpError("upload", resp))
	}

	var out UploadResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", ErrUploadFailed, err)
	}
	c.logger.Debug("clip uploaded", zap.Int("job", out.ID), zap.Int("bytes", len(data)))
	return out.ID, nil
}

// Status fetches the current state of a job.
func (c *Client) Status(ctx context.Context, id int) (JobStatus, error) {
	var out JobStatus
	if err := c.getJSON(ctx, "status", "/audio/status/"+strconv.Itoa(id), nil, &out); err != nil {
		return JobStatus{}, err
	}
	if out.ID == 0 {
		out.ID = id
	}
	return out, nil
}

// ChatResponses returns the raw response-list body for a voice identity.
// Decoding is left to the caller so it can treat malformed bodies leniently.
func (c *Client) ChatResponses(ctx context.Context, voiceID string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("voiceId", voiceID).
		Get("/audio/chat-responses")
	if err != nil {
		return nil, fmt.Errorf("chat responses: %w", err)
	}
	if resp.IsError() {
		return nil, httpError("chat responses", resp)
	}
	return resp.Body(), nil
}

// FetchAudio downloads an audio resource. Relative locations resolve
// against the base URL.
func (c *Client) FetchAudio(ctx context.Context, location string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).Get(location)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	if resp.IsError() {
		return nil, httpError("fetch audio", resp)
	}
	return resp.Body(), nil
}

// UploadAvatar sends a photo for animation.
func (c *Client) UploadAvatar(ctx context.Context, filename string, data []byte) (Avatar, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(data)).
		Post("/avatar/upload")
	if err != nil {
		return Avatar{}, fmt.Errorf("upload avatar: %w", err)
	}
	if resp.IsError() {
		return Avatar{}, httpError("upload avatar", resp)
	}
	var out Avatar
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return Avatar{}, fmt.Errorf("decode avatar: %w", err)
	}
	return out, nil
}

// Animate starts a lip-sync job for an avatar and an audio clip.
func (c *Client) Animate(ctx context.Context, req AnimateRequest) (Animation, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/avatar/animate")
	if err != nil {
		return Animation{}, fmt.Errorf("animate: %w", err)
	}
	if resp.IsError() {
		return Animation{}, httpError("animate", resp)
	}
	var out Animation
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return Animation{}, fmt.Errorf("decode animation: %w", err)
	}
	return out, nil
}

// Animations lists the animations generated for an avatar.
func (c *Client) Animations(ctx context.Context, avatarID int) ([]Animation, error) {
	var out []Animation
	path := "/avatar/" + strconv.Itoa(avatarID) + "/animations"
	if err := c.getJSON(ctx, "animations", path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AnimationStatus fetches the state of one animation job.
func (c *Client) AnimationStatus(ctx context.Context, id int) (Animation, error) {
	var out Animation
	path := "/avatar/animations/" + strconv.Itoa(id) + "/status"
	if err := c.getJSON(ctx, "animation status", path, nil, &out); err != nil {
		return Animation{}, err
	}
	if out.ID == 0 {
		out.ID = id
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, query map[string]string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsError() {
		return httpError(op, resp)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

func httpError(op string, resp *resty.Response) *HTTPError {
	body := resp.String()
	if len(body) > 200 {
		body = body[:200]
	}
	return &HTTPError{Op: op, StatusCode: resp.StatusCode(), Body: body}
}
