package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", cfg.APIURL)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 25*time.Second, cfg.CompletionDelay)
	assert.Equal(t, "arecord", cfg.Device)
	assert.Equal(t, []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"}, cfg.PlayerCommand())
	assert.Equal(t, "info", cfg.Logging().Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VOICECLONE_API_URL", "https://voice.example.com/api")
	t.Setenv("VOICECLONE_POLL_INTERVAL", "500ms")
	t.Setenv("VOICECLONE_DEVICE", "tone")
	t.Setenv("VOICECLONE_METRICS_ADDR", "127.0.0.1:9464")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://voice.example.com/api", cfg.APIURL)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "tone", cfg.Device)
	assert.Equal(t, "127.0.0.1:9464", cfg.MetricsAddr)
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("API_URL=http://backend:8080\nLOG_LEVEL=debug\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://backend:8080", cfg.APIURL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		field string
	}{
		{"bad url", "VOICECLONE_API_URL", "not a url", "APIURL"},
		{"unknown device", "VOICECLONE_DEVICE", "pulse", "Device"},
		{"zero poll", "VOICECLONE_POLL_INTERVAL", "0s", "PollInterval"},
		{"short completion delay", "VOICECLONE_COMPLETION_DELAY", "5s", "CompletionDelay"},
		{"bad level", "VOICECLONE_LOG_LEVEL", "chatty", "LogLevel"},
		{"bad metrics addr", "VOICECLONE_METRICS_ADDR", "nohost", "MetricsAddr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.value)

			_, err := Load("")
			require.Error(t, err)
			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.field, verrs[0].Field())
		})
	}
}
