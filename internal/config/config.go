// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jwulff/voiceclone/internal/db"
	"github.com/jwulff/voiceclone/internal/logging"
	"github.com/jwulff/voiceclone/internal/pipeline"
)

// EnvPrefix is prepended to every environment key, e.g. VOICECLONE_API_URL.
const EnvPrefix = "VOICECLONE"

// Config is the full application configuration.
type Config struct {
	APIURL    string        `mapstructure:"api_url" validate:"required,url"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
	UserAgent string        `mapstructure:"user_agent"`

	DBPath string `mapstructure:"db_path"`

	LogPath  string `mapstructure:"log_path"`
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	MetricsAddr string `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`

	PollInterval    time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	// Responses are generated after completion; the delay may be raised,
	// never lowered below the backend's 25s.
	CompletionDelay time.Duration `mapstructure:"completion_delay" validate:"gte=25s"`

	Device        string  `mapstructure:"device" validate:"oneof=arecord tone"`
	ArecordBinary string  `mapstructure:"arecord_binary"`
	ArecordInput  string  `mapstructure:"arecord_input"`
	ToneFrequency float64 `mapstructure:"tone_frequency" validate:"gt=0"`

	Player string `mapstructure:"player" validate:"required"`
}

// PlayerCommand splits Player into argv.
func (c *Config) PlayerCommand() []string {
	return strings.Fields(c.Player)
}

// New returns a viper instance reading VOICECLONE_* variables and, when
// present, a .env file in the working directory or at file.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	v.SetConfigType("env")
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(".env")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "http://localhost:3000")
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("user_agent", "voiceclone/1.0")
	v.SetDefault("db_path", db.DefaultDBPath())
	v.SetDefault("log_path", logging.DefaultPath())
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("poll_interval", pipeline.DefaultPollInterval)
	v.SetDefault("completion_delay", pipeline.DefaultCompletionDelay)
	v.SetDefault("device", "arecord")
	v.SetDefault("arecord_binary", "arecord")
	v.SetDefault("arecord_input", "")
	v.SetDefault("tone_frequency", 220.0)
	v.SetDefault("player", "ffplay -nodisp -autoexit -loglevel quiet")
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Load is New followed by FromViper.
func Load(file string) (*Config, error) {
	v, err := New(file)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// Logging returns the logger options for cfg.
func (c *Config) Logging() logging.Options {
	return logging.Options{Path: c.LogPath, Level: c.LogLevel}
}
