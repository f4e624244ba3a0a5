package backend

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
)

// TestLiveBackendStatus queries a running backend for a known job.
// Skipped unless VOICECLONE_LIVE_URL and VOICECLONE_LIVE_JOB are set.
func TestLiveBackendStatus(t *testing.T) {
	baseURL := os.Getenv("VOICECLONE_LIVE_URL")
	job := os.Getenv("VOICECLONE_LIVE_JOB")
	if baseURL == "" || job == "" {
		t.Skip("no live backend configured")
	}

	var id int
	if _, err := fmt.Sscanf(job, "%d", &id); err != nil {
		t.Fatalf("VOICECLONE_LIVE_JOB: %v", err)
	}

	client := NewClient(Options{BaseURL: baseURL, Timeout: 10 * time.Second}, zap.NewNop())
	st, err := client.Status(context.Background(), id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	fmt.Printf("Job %d: status=%s voiceId=%q\n", id, st.Status, st.VoiceID)

	if st.Status == StateCompleted {
		body, err := client.ChatResponses(context.Background(), st.VoiceID)
		if err != nil {
			t.Fatalf("chat responses: %v", err)
		}
		fmt.Printf("Responses: %d bytes\n", len(body))
	}
}
