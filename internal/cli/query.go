package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"github.com/roach88/tablebuilder/internal/compiler"
	"github.com/roach88/tablebuilder/internal/engine"
	"github.com/roach88/tablebuilder/internal/export"
	"github.com/roach88/tablebuilder/internal/ir"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <query-file>",
		Short: "Run a query file",
		Long: `Run a query defined in a YAML, JSON or CUE file.

Text output is a table of the result rows. JSON output is the full result:
the executed query, its meta, rows and crop report.

Example:
  tablebuilder query ./queries/absence.yaml --db ./stats.db
  tablebuilder query ./queries/absence.cue --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, args[0], cmd)
		},
	}
}

func runQuery(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	logger := opts.newLogger(cmd.ErrOrStderr())
	ctx := cmd.Context()

	q, err := compiler.LoadQuery(path)
	if err != nil {
		return f.Fail("failed to load query", err)
	}
	f.VerboseLog("Loaded query for subject %s from %s", q.SubjectID, path)

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	eng, _ := opts.newEngine(st, logger, nil)

	if f.Format == "json" {
		var res *engine.QueryResult
		err := withRetry(ctx, opts.Retries, logger, func() error {
			var err error
			res, err = eng.Query(ctx, q)
			return err
		})
		if err != nil {
			return f.Fail("query failed", err)
		}
		return f.encode(CLIResponse{Status: "ok", Data: res, QueryHash: res.QueryHash})
	}

	summary, err := streamQuery(ctx, eng, q, opts.Retries, logger, func() engine.ResultSink {
		return export.NewTableSink(cmd.OutOrStdout())
	})
	if err != nil {
		return f.Fail("query failed", err)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), summaryLine(summary))
	return nil
}

// streamQuery runs q into a fresh sink per attempt. Once a sink has seen
// the meta its output may be visible, so later failures are not retried.
func streamQuery(ctx context.Context, eng *engine.Engine, q ir.ObservationQueryContext, retries int, logger *slog.Logger, newSink func() engine.ResultSink) (*engine.StreamSummary, error) {
	var summary *engine.StreamSummary
	err := withRetry(ctx, retries, logger, func() error {
		sink := &startedSink{ResultSink: newSink()}
		var err error
		summary, err = eng.QueryToStream(ctx, q, sink)
		if err != nil && sink.started {
			return backoff.Permanent(err)
		}
		return err
	})
	return summary, err
}

// startedSink records whether the meta was written.
type startedSink struct {
	engine.ResultSink
	started bool
}

func (s *startedSink) WriteMeta(meta *engine.ResultMeta) error {
	s.started = true
	return s.ResultSink.WriteMeta(meta)
}

func (s *startedSink) Flush() error {
	if f, ok := s.ResultSink.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func summaryLine(s *engine.StreamSummary) string {
	line := fmt.Sprintf("%d rows from %d observations (query %s)", s.Rows, s.Matched, s.QueryHash)
	if s.Crop.Cropped {
		periods := make([]string, len(s.Crop.TimePeriods))
		for i, p := range s.Crop.TimePeriods {
			periods[i] = p.String()
		}
		line += fmt.Sprintf("\ncropped to %s to fit the budget of %d cells",
			strings.Join(periods, ", "), s.Crop.MaxCells)
	}
	return line
}
