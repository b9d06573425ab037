package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skaji/gql/internal/diag"
	"github.com/skaji/gql/internal/service"
)

type checkFlags struct {
	format string
	watch  bool
}

func newCheckCmd(global *globalFlags, stdout io.Writer) *cobra.Command {
	flags := &checkFlags{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Print the diagnostics of the project",
		Long:  "Loads every schema and query file of the project and prints its diagnostics. Exits non-zero when any error is reported.",
		Args:  cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validateFormat(flags.format)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCheck(ctx, global, flags, stdout)
		},
	}
	cmd.Flags().StringVar(&flags.format, "format", "text", "output format: text|json")
	cmd.Flags().BoolVar(&flags.watch, "watch", false, "keep watching and print the diagnostics after every change")
	return cmd
}

func validateFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	}
	return fmt.Errorf("invalid --format %q: must be text or json", format)
}

func runCheck(ctx context.Context, global *globalFlags, flags *checkFlags, stdout io.Writer) error {
	changed := make(chan struct{}, 1)
	opts := []service.Option{
		service.WithLogger(slog.Default()),
		service.WithTrace(global.trace),
	}
	if flags.watch {
		opts = append(opts, service.WithChangeHandler(func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		}))
	} else {
		opts = append(opts, service.WithBackend("none"))
	}

	svc, err := service.Open(global.cwd, opts...)
	if err != nil {
		return err
	}
	defer svc.Close()
	if err := svc.Start(ctx); err != nil {
		return err
	}
	go logErrors(ctx, svc)

	status := svc.Status()
	if err := printDiagnostics(stdout, svc.Config().Dir, flags.format, status); err != nil {
		return err
	}
	if !flags.watch {
		if diag.HasErrors(status) {
			return errDiagnostics
		}
		return nil
	}

	// The initial listing may have notified already.
	select {
	case <-changed:
	default:
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			if err := printDiagnostics(stdout, svc.Config().Dir, flags.format, svc.Status()); err != nil {
				return err
			}
		}
	}
}

func logErrors(ctx context.Context, svc *service.Service) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-svc.Errors():
			slog.Error("check failed", "error", err)
		}
	}
}

type locationJSON struct {
	Path   string `json:"path"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

type diagnosticJSON struct {
	Message   string         `json:"message"`
	Severity  diag.Severity  `json:"severity"`
	Locations []locationJSON `json:"locations"`
	Rule      string         `json:"rule,omitempty"`
}

// printDiagnostics writes diags as one JSON array with absolute paths, or
// as "path:line:col: severity: message" lines with paths relative to dir.
func printDiagnostics(w io.Writer, dir, format string, diags []diag.Diagnostic) error {
	if format == "json" {
		out := make([]diagnosticJSON, 0, len(diags))
		for _, d := range diags {
			item := diagnosticJSON{Message: d.Message, Severity: d.Severity, Rule: d.Rule, Locations: []locationJSON{}}
			for _, loc := range d.Locations {
				item.Locations = append(item.Locations, locationJSON{Path: loc.Path, Line: loc.Start.Line, Column: loc.Start.Column})
			}
			out = append(out, item)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, d := range diags {
		if len(d.Locations) == 0 {
			fmt.Fprintf(w, "%s: %s\n", d.Severity, d.Message)
			continue
		}
		loc := d.Locations[0]
		fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", relativePath(dir, loc.Path), loc.Start.Line, loc.Start.Column, d.Severity, d.Message)
	}
	return nil
}

func relativePath(dir, path string) string {
	if rel, err := filepath.Rel(dir, path); err == nil {
		return rel
	}
	return path
}
