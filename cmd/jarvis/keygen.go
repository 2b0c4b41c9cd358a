package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/jarvis/internal/auth"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen [api-key]",
		Short: "Print the SHA-256 hash of an API key for config.yaml",
		Long:  "Hashes the given API key, or a freshly generated one when none is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var apiKey string
			if len(args) == 1 {
				apiKey = args[0]
			} else {
				buf := make([]byte, 24)
				if _, err := rand.Read(buf); err != nil {
					return fmt.Errorf("failed to generate key: %w", err)
				}
				apiKey = "jv_" + hex.EncodeToString(buf)
			}
			keyHash := auth.HashAPIKey(apiKey)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "API Key: %s\n", apiKey)
			fmt.Fprintf(out, "SHA-256 Hash: %s\n", keyHash)
			fmt.Fprintln(out, "\nAdd this to your config.yaml:")
			fmt.Fprintf(out, "server:\n  require_api_key: true\n  api_keys:\n")
			fmt.Fprintf(out, "    - key_hash: \"%s\"\n", keyHash)
			fmt.Fprintf(out, "      description: \"Generated key\"\n")
			return nil
		},
	}
}
