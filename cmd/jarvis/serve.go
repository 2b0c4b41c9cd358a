package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/jarvis/internal/runtime"
	"github.com/tjfontaine/jarvis/internal/telemetry"
)

func newServeCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := runtime.New(
				runtime.WithLogger(logger),
				runtime.WithFileConfig(configPath),
			)
			if err != nil {
				return fmt.Errorf("failed to create app: %w", err)
			}
			defer app.Close()

			cfg := app.Config()
			setLogLevel(cfg.Log.Level)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			// Initialize OpenTelemetry
			shutdown, err := telemetry.InitTracer(telemetry.Options{
				ServiceName: "jarvis",
				Version:     cfg.Build.Version,
				Enabled:     cfg.Telemetry.Enabled,
			}, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("jarvis starting",
				slog.Int("port", cfg.Server.Port),
				slog.String("storage", cfg.Storage.Type),
				slog.Bool("llm", cfg.LLM.Enabled),
				slog.String("router_mode", cfg.LLM.RouterMode),
				slog.Bool("execute_actions", cfg.ExecuteActions),
				slog.Bool("require_api_key", cfg.Server.RequireAPIKey))

			if err := app.Run(ctx); err != nil {
				return err
			}
			logger.Info("jarvis stopped")
			return nil
		},
	}
}
