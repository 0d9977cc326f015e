// Package cmd contains the CLI entry points.
package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/QatreenFatima/ai-book/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "ai-book",
	Short: "RAG chat backend for the Physical AI & Humanoid Robotics book",
	Long: `ai-book serves a retrieval-augmented chat assistant grounded in the
"Physical AI & Humanoid Robotics" textbook.

It indexes the book's MDX pages into a vector database and answers reader
questions over a streaming HTTP API, citing the sections it drew from.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// Local development convenience; a missing .env is fine.
		_ = godotenv.Load()
		slog.SetDefault(initLogger())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// initLogger builds the default logger. DEBUG=1 switches to debug level,
// LOG_FORMAT=json to JSON output. Logs go to stderr, keeping stdout free
// for command output.
func initLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	cfg.JSON = os.Getenv("LOG_FORMAT") == "json"
	return log.New(cfg)
}
