package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skaji/gql/internal/ls"
)

// errDiagnostics makes the process exit non-zero after the diagnostics have
// been printed.
var errDiagnostics = errors.New("errors found")

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		if !errors.Is(err, errDiagnostics) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

type globalFlags struct {
	cwd      string
	logLevel string
	trace    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "gql",
		Short:         "GraphQL language service",
		Long:          "gql checks GraphQL schema and query files configured in .gqlconfig and serves them to editors over LSP.",
		Version:       ls.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			logger, err := newLogger(stderr, flags.logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&flags.cwd, "cwd", ".", "directory to search for .gqlconfig from")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	root.PersistentFlags().BoolVar(&flags.trace, "trace", false, "log the duration of each stage at debug level")

	root.AddCommand(newLSPCmd(flags))
	root.AddCommand(newCheckCmd(flags, stdout))
	return root
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}
