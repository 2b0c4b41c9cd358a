package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/jarvis/internal/command"
	"github.com/tjfontaine/jarvis/internal/runtime"
)

func newRouteCmd(logger *slog.Logger) *cobra.Command {
	var (
		conversation string
		execute      bool
	)

	cmd := &cobra.Command{
		Use:   "route <text>",
		Short: "Route one utterance and print the result envelope",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := runtime.New(
				runtime.WithLogger(logger),
				runtime.WithFileConfig(configPath),
			)
			if err != nil {
				return fmt.Errorf("failed to create app: %w", err)
			}
			defer app.Close()
			setLogLevel(app.Config().Log.Level)

			req := command.Request{Text: strings.Join(args, " ")}
			if conversation != "" {
				req.Context = map[string]any{"conversationId": conversation}
			}
			if cmd.Flags().Changed("execute") {
				req.Options.Execute = &execute
			}

			env, err := app.Commands().Handle(cmd.Context(), "", req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(env)
		},
	}
	cmd.Flags().StringVar(&conversation, "conversation", "", "conversation id for confirmations and memory")
	cmd.Flags().BoolVar(&execute, "execute", false, "execute planned Home Assistant calls")
	return cmd
}
