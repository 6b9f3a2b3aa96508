// Package commands implements the bookrag command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"bookrag/internal/app"
	"bookrag/internal/config"
	"bookrag/internal/logging"
)

var (
	cfgPath  string
	logLevel string
)

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookrag",
		Short: "Question answering over your personal book library",
		Long: `bookrag ingests a directory of books (PDF and plain text), indexes
their passages as embeddings and answers questions from them with
page-level citations.

File names follow "<Title> - <Author>.pdf".`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ./bookrag.yaml or the user config dir)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	cmd.AddCommand(
		NewIngestCmd(),
		NewSearchCmd(),
		NewAskCmd(),
		NewStatsCmd(),
		NewChatCmd(),
		NewMCPCmd(),
	)
	return cmd
}

// Execute runs the CLI; SIGINT and SIGTERM cancel the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func loadConfig() (*config.AppConfig, error) {
	if cfgPath != "" {
		return config.Load(cfgPath)
	}
	cfg, _, err := config.LoadDefault()
	return cfg, err
}

// openApp loads the configuration and assembles the pipeline. Logs go to
// logOut so interactive and protocol commands can keep stdout clean.
func openApp(cmd *cobra.Command, logOut io.Writer) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	if level == "" {
		level = "info"
	}
	var logger *log.Logger
	if logOut == io.Discard {
		logger = logging.Discard()
	} else {
		logger, err = logging.New(level, logOut)
		if err != nil {
			return nil, err
		}
	}
	a, err := app.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing: %w", err)
	}
	return a, nil
}
