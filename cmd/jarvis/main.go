// Command jarvis serves the home assistant command router.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tjfontaine/jarvis/internal/pkg/config"
)

var (
	configPath string
	logLevel   = new(slog.LevelVar)
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger; the level is raised or lowered once the
	// config is read.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	root := &cobra.Command{
		Use:           "jarvis",
		Short:         "Natural language command router for Home Assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to config.yaml")

	root.AddCommand(newServeCmd(logger), newRouteCmd(logger), newKeygenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "warn", "warning":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}
}
