// Package metrics registers the client's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters
var (
	RecordingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceclone_recordings_total",
		Help: "Recording sessions by outcome",
	}, []string{"outcome"})
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceclone_uploads_total",
		Help: "Clip uploads by outcome",
	}, []string{"outcome"})
	StatusPollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voiceclone_status_polls_total",
		Help: "Job status requests sent",
	})
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceclone_jobs_total",
		Help: "Jobs reaching a terminal state, by status",
	}, []string{"status"})
	ResponseLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceclone_response_loads_total",
		Help: "Response list loads by outcome",
	}, []string{"outcome"})
	PlaybackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceclone_playback_total",
		Help: "Playback attempts by path and outcome",
	}, []string{"path", "outcome"})
)

// Histograms
var (
	RecordingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voiceclone_recording_duration_seconds",
		Help:    "Length of finalized recordings",
		Buckets: []float64{1, 5, 10, 20, 30, 45, 60},
	})
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voiceclone_job_duration_seconds",
		Help:    "Time from upload acceptance to a terminal job status",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
	})
)
