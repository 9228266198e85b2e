package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/jonesrussell/north-cloud/spectre/internal/platform/logger"
	"github.com/spf13/cobra"
)

const defaultEndpoint = "http://localhost:8095"

var (
	// endpoint is the collector base URL.
	endpoint string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:           "spectrectl",
		Short:         "Replay tracking sessions and inspect heatmaps",
		Long:          `spectrectl replays scripted page sessions through the tracking agent and renders heatmaps collected by a Spectre collector.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			cmd.SetContext(logger.WithContext(cmd.Context(), log))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			_ = logger.FromContext(cmd.Context()).Sync()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early; an explicit --endpoint still wins when flags are parsed
	_ = godotenv.Load()

	if env := os.Getenv("SPECTRE_ENDPOINT"); env != "" {
		endpoint = env
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", defaultEndpoint, "collector base URL (env SPECTRE_ENDPOINT)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(replayCommand())
	rootCmd.AddCommand(renderCommand())
	rootCmd.AddCommand(urlsCommand())
}

// newLogger writes console logs to stderr so stdout stays clean for output.
func newLogger() (logger.Logger, error) {
	level := "info"
	if debug {
		level = "debug"
	}
	log, err := logger.New(logger.Config{
		Level:       level,
		Format:      "console",
		Development: debug,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log, nil
}
