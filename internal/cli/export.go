package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/tablebuilder/internal/compiler"
	"github.com/roach88/tablebuilder/internal/engine"
	"github.com/roach88/tablebuilder/internal/export"
	"github.com/roach88/tablebuilder/internal/ir"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Out string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <query-file>",
		Short: "Export a query result as CSV",
		Long: `Run a query file and write the result as CSV, one line per row.

Without --out the CSV goes to stdout. With --out it is written to a
temporary file next to the target and renamed into place when complete,
and a summary is printed instead.

Example:
  tablebuilder export ./queries/absence.yaml > absence.csv
  tablebuilder export ./queries/absence.yaml --out absence.csv --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output file (default stdout)")

	return cmd
}

func runExport(opts *ExportOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	logger := opts.newLogger(cmd.ErrOrStderr())
	ctx := cmd.Context()

	q, err := compiler.LoadQuery(path)
	if err != nil {
		return f.Fail("failed to load query", err)
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	eng, _ := opts.newEngine(st, logger, nil)

	if opts.Out == "" {
		w := bufio.NewWriter(cmd.OutOrStdout())
		summary, err := streamQuery(ctx, eng, q, opts.Retries, logger, func() engine.ResultSink {
			return export.NewCSVSink(w)
		})
		if err != nil {
			// CSV may already be on stdout; the error goes to stderr.
			f.Writer = cmd.ErrOrStderr()
			return f.Fail("export failed", err)
		}
		if err := w.Flush(); err != nil {
			return WrapExitError(ExitCommandError, "write csv", err)
		}
		f.VerboseLog("%s", summaryLine(summary))
		return nil
	}

	summary, err := exportToFile(ctx, eng, q, opts, logger)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr
		}
		return f.Fail("export failed", err)
	}

	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: summary, QueryHash: summary.QueryHash})
	}
	return f.Success(fmt.Sprintf("Wrote %s\n%s", opts.Out, summaryLine(summary)))
}

// exportToFile writes the CSV to a temporary file and renames it over
// opts.Out once the stream has completed.
func exportToFile(ctx context.Context, eng *engine.Engine, q ir.ObservationQueryContext, opts *ExportOptions, logger *slog.Logger) (*engine.StreamSummary, error) {
	dir := filepath.Dir(opts.Out)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(opts.Out)+".*")
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "create output file", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	summary, err := streamQuery(ctx, eng, q, opts.Retries, logger, func() engine.ResultSink {
		if _, err := tmp.Seek(0, io.SeekStart); err == nil {
			_ = tmp.Truncate(0)
		}
		return export.NewCSVSink(tmp)
	})
	if err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, WrapExitError(ExitCommandError, "close output file", err)
	}
	if err := os.Rename(tmp.Name(), opts.Out); err != nil {
		return nil, WrapExitError(ExitCommandError, "rename output file", err)
	}
	return summary, nil
}
