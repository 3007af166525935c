// Package export writes streamed query results as flat files.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/tablebuilder/internal/engine"
	"github.com/roach88/tablebuilder/internal/ir"
)

// ErrNoMeta is returned when a row arrives before the result meta.
var ErrNoMeta = errors.New("row written before meta")

// CSVSink is an engine.ResultSink producing one CSV line per result row.
//
// The header is fixed columns, then one column per filter, then one per
// indicator, in result meta order. Filter cells hold item labels and the
// location name of a merged location is its merged label.
type CSVSink struct {
	w   *csv.Writer
	out *records
}

var _ engine.ResultSink = (*CSVSink)(nil)

// NewCSVSink returns a sink writing to w.
func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{w: csv.NewWriter(w)}
}

// WriteMeta writes the header line.
func (s *CSVSink) WriteMeta(meta *engine.ResultMeta) error {
	if meta == nil {
		return ErrNoMeta
	}
	s.out = newRecords(meta)
	if err := s.w.Write(s.out.header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	return nil
}

// WriteRow writes one result row.
func (s *CSVSink) WriteRow(row ir.ResultRow) error {
	if s.out == nil {
		return ErrNoMeta
	}
	if err := s.w.Write(s.out.row(row)); err != nil {
		return fmt.Errorf("write csv row %s: %w", row.ObservationID, err)
	}
	return nil
}

// Flush writes any buffered lines to the underlying writer.
func (s *CSVSink) Flush() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
