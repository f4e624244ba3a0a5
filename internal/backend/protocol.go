// Package backend provides the HTTP client and wire types for the voice
// cloning service: clip upload, job status, generated responses, and the
// avatar endpoints.
package backend

// JobState is the backend's processing status for an uploaded clip.
type JobState string

const (
	StatePending    JobState = "pending"
	StateProcessing JobState = "processing"
	StateCompleted  JobState = "completed"
	StateFailed     JobState = "failed"
)

// Terminal reports whether polling should stop at this state.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// UploadResponse is returned by POST /audio/upload.
type UploadResponse struct {
	ID int `json:"id"`
}

// JobStatus is returned by GET /audio/status/{id}. Only status and voiceId
// are relied on; other fields the service adds are ignored.
type JobStatus struct {
	ID      int      `json:"id,omitempty"`
	Status  JobState `json:"status"`
	VoiceID string   `json:"voiceId,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// ResponseClip is one generated answer from GET /audio/chat-responses.
type ResponseClip struct {
	ID       int    `json:"id"`
	Question string `json:"question"`
	AudioURL string `json:"audioUrl"`
}

// Avatar is returned by POST /avatar/upload.
type Avatar struct {
	ID       int    `json:"id"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// AnimateRequest is the body of POST /avatar/animate.
type AnimateRequest struct {
	AvatarID int    `json:"avatarId"`
	AudioURL string `json:"audioUrl"`
}

// Animation is a lip-sync job for an avatar.
type Animation struct {
	ID       int      `json:"id"`
	AvatarID int      `json:"avatarId,omitempty"`
	Status   JobState `json:"status"`
	VideoURL string   `json:"videoUrl,omitempty"`
	Error    string   `json:"error,omitempty"`
}
