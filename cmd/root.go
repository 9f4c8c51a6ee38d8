// Package cmd provides the ringan CLI commands.
//
// Commands:
//   - serve: HTTP API server
//   - ask: one-shot question against the knowledge base
//   - index: rebuild the vector index from the knowledge base
//   - seed: load the curated knowledge base dataset
//   - version: version information
package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ringan-ai/ringan/internal/config"
	"github.com/ringan-ai/ringan/internal/log"
)

var rootCmd = &cobra.Command{
	Use:           "ringan",
	Short:         "Ringan - a retrieval-augmented mental-health assistant",
	Long:          "Ringan answers mental-health questions grounded in a curated knowledge base,\ntracks conversation context, and adapts to user feedback.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is the single entry point called
// from main.
func Execute() error {
	// A missing .env file is fine; the environment may be set elsewhere.
	_ = godotenv.Load()

	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	// Stderr keeps stdout clean for command output.
	slog.SetDefault(log.New(log.Config{Level: level}))

	return rootCmd.Execute()
}

// loadConfig loads the application configuration. Validation happens
// inside config.Load.
func loadConfig() (*config.Config, error) {
	return config.Load()
}
