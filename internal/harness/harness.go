package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/tablebuilder/internal/engine"
	"github.com/roach88/tablebuilder/internal/export"
	"github.com/roach88/tablebuilder/internal/ir"
	"github.com/roach88/tablebuilder/internal/store"
)

// scenarioToken names the scratch tables of every scenario query, so runs
// are identical.
const scenarioToken = "scenario"

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh store in a temporary directory, seeded
// with the scenario's fixture. A query that fails is not an execution
// error: the failure is recorded on the result for error assertions.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	fixture, err := scenario.LoadFixture()
	if err != nil {
		return nil, fmt.Errorf("failed to load fixture: %w", err)
	}
	q, err := scenario.CompileQuery()
	if err != nil {
		return nil, fmt.Errorf("failed to compile query: %w", err)
	}

	dir, err := os.MkdirTemp("", "tablebuilder-scenario-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "scenario.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	if err := fixture.Seed(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to seed fixture: %w", err)
	}

	opts := []engine.EngineOption{
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithTokenGenerator(engine.NewFixedGenerator(scenarioToken)),
	}
	if scenario.MaxTableCells > 0 {
		opts = append(opts, engine.WithMaxTableCells(scenario.MaxTableCells))
	}
	eng := engine.New(st, opts...)

	result := NewResult()
	var buf bytes.Buffer
	sink := &recordingSink{CSVSink: export.NewCSVSink(&buf), result: result}

	summary, err := eng.QueryToStream(ctx, q, sink)
	switch {
	case err == nil:
		result.Summary = summary
		result.CSV = buf.Bytes()
	case engine.ErrorCodeOf(err) != "":
		result.Rows = []ir.ResultRow{}
		result.ErrorCode = engine.ErrorCodeOf(err)
	default:
		return nil, fmt.Errorf("failed to run query: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// recordingSink writes the CSV export and keeps each row.
type recordingSink struct {
	*export.CSVSink
	result *Result
}

func (s *recordingSink) WriteRow(row ir.ResultRow) error {
	s.result.Rows = append(s.result.Rows, row)
	return s.CSVSink.WriteRow(row)
}
