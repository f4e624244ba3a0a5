// Package db persists job history and loaded responses in SQLite.
package db

import "time"

// Job is a recorded upload and its last known state.
type Job struct {
	ID        int
	Status    string
	VoiceID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Response is a cached generated answer for a voice identity.
type Response struct {
	ID       int
	VoiceID  string
	Question string
	AudioURL string
	Position int
	LoadedAt time.Time
}
