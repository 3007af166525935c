package export

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/roach88/tablebuilder/internal/engine"
	"github.com/roach88/tablebuilder/internal/ir"
)

// TableSink renders a result as an aligned text table, with the same
// columns as CSVSink. Nothing is written until Flush, since column widths
// depend on every row.
type TableSink struct {
	tw  *tabwriter.Writer
	out *records
}

var _ engine.ResultSink = (*TableSink)(nil)

// NewTableSink returns a sink writing to w.
func NewTableSink(w io.Writer) *TableSink {
	return &TableSink{tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (s *TableSink) WriteMeta(meta *engine.ResultMeta) error {
	if meta == nil {
		return ErrNoMeta
	}
	s.out = newRecords(meta)
	return s.line(s.out.header)
}

func (s *TableSink) WriteRow(row ir.ResultRow) error {
	if s.out == nil {
		return ErrNoMeta
	}
	return s.line(s.out.row(row))
}

func (s *TableSink) Flush() error {
	if err := s.tw.Flush(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}
	return nil
}

func (s *TableSink) line(cells []string) error {
	if _, err := fmt.Fprintln(s.tw, strings.Join(cells, "\t")); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}
