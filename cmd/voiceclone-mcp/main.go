// Command voiceclone-mcp serves voiceclone job history over MCP stdio.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/jwulff/voiceclone/internal/backend"
	"github.com/jwulff/voiceclone/internal/config"
	"github.com/jwulff/voiceclone/internal/db"
	"github.com/jwulff/voiceclone/internal/logging"
	"github.com/jwulff/voiceclone/internal/mcpserver"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "voiceclone-mcp:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configFile string
		offline    bool
	)
	cmd := &cobra.Command{
		Use:           "voiceclone-mcp",
		Short:         "Serve voiceclone job history over MCP stdio",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFile, offline)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "path to a .env style config file")
	cmd.Flags().BoolVar(&offline, "offline", false, "serve local history only, never call the backend")
	return cmd
}

func run(configFile string, offline bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging())
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := db.OpenReadOnly(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	h := &mcpserver.Handlers{Store: store, Logger: logger}
	if !offline {
		client := backend.NewClient(backend.Options{
			BaseURL:   cfg.APIURL,
			Timeout:   cfg.Timeout,
			UserAgent: cfg.UserAgent,
		}, logger)
		h.Backend = client
		h.Avatars = client
		h.AnimationPoll = cfg.PollInterval
	}

	return server.ServeStdio(mcpserver.New(h))
}
