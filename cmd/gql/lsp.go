package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/skaji/gql/internal/ls"
	"github.com/skaji/gql/internal/service"
)

func newLSPCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Run the language server on stdio",
		Long:  "Runs the language server on stdin and stdout. The project is found from the client's root or the configDir initialization option.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			server := ls.New(
				service.WithLogger(slog.Default()),
				service.WithTrace(flags.trace),
			)
			if err := server.RunStdio(); err != nil {
				slog.Error("server failed", "error", err)
				return err
			}
			return nil
		},
	}
}
