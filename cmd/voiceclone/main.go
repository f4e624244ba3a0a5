// Command voiceclone records a voice sample, submits it for cloning and
// plays back the generated responses in the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jwulff/voiceclone/internal/app"
	"github.com/jwulff/voiceclone/internal/backend"
	"github.com/jwulff/voiceclone/internal/capture"
	"github.com/jwulff/voiceclone/internal/config"
	"github.com/jwulff/voiceclone/internal/db"
	"github.com/jwulff/voiceclone/internal/logging"
	"github.com/jwulff/voiceclone/internal/metrics"
	"github.com/jwulff/voiceclone/internal/pipeline"
	"github.com/jwulff/voiceclone/internal/playback"
	"github.com/jwulff/voiceclone/internal/recorder"
	"github.com/jwulff/voiceclone/internal/responses"
	"github.com/jwulff/voiceclone/internal/waveform"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "voiceclone:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:           "voiceclone",
		Short:         "Record a voice sample and play back its cloned responses",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFile)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "path to a .env style config file")
	return cmd
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging())
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := backend.NewClient(backend.Options{
		BaseURL:   cfg.APIURL,
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
	}, logger)

	device := newDevice(cfg)
	src := capture.NewSource(device, logger)
	rec := recorder.New(src, logger)
	loader := responses.NewLoader(client, logger, responses.WithRecorder(store))
	orch := pipeline.New(client, loader, logger,
		pipeline.WithPollInterval(cfg.PollInterval),
		pipeline.WithCompletionDelay(cfg.CompletionDelay),
		pipeline.WithRecorder(store),
	)
	player := playback.NewArbiter(playback.CommandPlayer{
		Command: cfg.PlayerCommand(),
		BaseURL: cfg.APIURL,
	}, client, logger)

	logger.Info("voiceclone starting",
		zap.String("api", cfg.APIURL),
		zap.String("device", device.Name()),
		zap.String("db", cfg.DBPath),
		zap.Duration("pollInterval", cfg.PollInterval),
		zap.Duration("completionDelay", cfg.CompletionDelay),
	)

	model := app.New(ctx, app.Deps{
		Recorder: rec,
		Renderer: waveform.NewRenderer(),
		Pipeline: orch,
		Loader:   loader,
		Player:   player,
		History:  store,
		Logger:   logger,
		Device:   device.Name(),
	})
	prog := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer stop()
		_, err := prog.Run()
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	})

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:         cfg.MetricsAddr,
			Handler:      metrics.Handler(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	player.Stop()
	if rec.State() == recorder.Capturing {
		rec.Stop()
	}
	logger.Info("voiceclone stopped", zap.Error(err))
	return err
}

func newDevice(cfg *config.Config) capture.Device {
	if cfg.Device == "tone" {
		return capture.ToneDevice{Frequency: cfg.ToneFrequency, Amplitude: 8000}
	}
	return capture.ArecordDevice{Binary: cfg.ArecordBinary, Input: cfg.ArecordInput}
}
