package engine

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/tablebuilder/internal/ir"
	"github.com/roach88/tablebuilder/internal/metrics"
	"github.com/roach88/tablebuilder/internal/store"
)

const tracerName = "github.com/roach88/tablebuilder/internal/engine"

// Engine answers metadata and observation queries against a store.
//
// Engine holds no per-query state: every query pins its own connection
// and scratch tables, so an Engine is safe for concurrent use.
type Engine struct {
	store    *store.Store
	maxCells int
	tokens   TokenGenerator
	merge    MergeStrategy
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	validate *validator.Validate
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithMaxTableCells sets the cell budget of a single query.
//
// Default: 25,000 cells (DefaultMaxTableCells)
func WithMaxTableCells(n int) EngineOption {
	return func(e *Engine) {
		e.maxCells = n
	}
}

// WithTokenGenerator sets the generator of per-query tokens.
// Tests use FixedGenerator for stable scratch table names.
func WithTokenGenerator(g TokenGenerator) EngineOption {
	return func(e *Engine) {
		e.tokens = g
	}
}

// WithMergeStrategy replaces SumMerge for duplicate locations.
func WithMergeStrategy(m MergeStrategy) EngineOption {
	return func(e *Engine) {
		e.merge = m
	}
}

func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		e.tracer = t
	}
}

// New creates an Engine over s.
func New(s *store.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    s,
		maxCells: DefaultMaxTableCells,
		tokens:   UUIDv7Generator{},
		merge:    SumMerge,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// tracedMatch runs match under an "engine.match" span; every staging
// statement sees that span on its context.
func (e *Engine) tracedMatch(ctx context.Context, scratch Scratch, r *resolvedQuery) (*MatchedObservationSet, error) {
	ctx, span := e.tracer.Start(ctx, "engine.match")
	defer span.End()
	return match(ctx, scratch, r)
}

// MaxTableCells returns the configured cell budget.
func (e *Engine) MaxTableCells() int {
	return e.maxCells
}

// Cropper returns a Cropper using the engine's cell budget.
func (e *Engine) Cropper() Cropper {
	return Cropper{MaxCells: e.maxCells}
}

// QueryResult is the buffered answer to a query.
type QueryResult struct {
	SubjectID string `json:"subject_id"`
	QueryHash string `json:"query_hash"`

	// Query is the query actually executed, after cropping.
	Query   ir.ObservationQueryContext `json:"query"`
	Meta    *ResultMeta                `json:"meta"`
	Results []ir.ResultRow             `json:"results"`
	Crop    CropReport                 `json:"crop"`
}

// ResultSink receives a streamed query result: the meta first, then each
// row. A sink that also implements Flush() error is flushed at the end.
type ResultSink interface {
	WriteMeta(meta *ResultMeta) error
	WriteRow(row ir.ResultRow) error
}

type flusher interface {
	Flush() error
}

// StreamSummary describes a streamed query once every row is written.
type StreamSummary struct {
	SubjectID string     `json:"subject_id"`
	QueryHash string     `json:"query_hash"`
	Matched   int        `json:"matched"`
	Rows      int        `json:"rows"`
	Crop      CropReport `json:"crop"`
}

// GetSubjectMeta returns everything a caller can select from a subject.
func (e *Engine) GetSubjectMeta(ctx context.Context, subjectID string) (_ *SubjectMeta, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.GetSubjectMeta",
		trace.WithAttributes(attribute.String("subject.id", subjectID)))
	defer func() { e.finish(span, "meta", err) }()

	start := time.Now()
	subject, err := LoadSubject(ctx, e.store, subjectID)
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveStage("load_subject", time.Since(start))
	return BuildSubjectMeta(subject), nil
}

// Query runs q and buffers every result row.
func (e *Engine) Query(ctx context.Context, q ir.ObservationQueryContext) (_ *QueryResult, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.Query",
		trace.WithAttributes(attribute.String("subject.id", q.SubjectID)))
	defer func() { e.finish(span, "query", err) }()

	var out *QueryResult
	err = e.run(ctx, q, func(p *prepared) error {
		out = &QueryResult{
			SubjectID: p.resolved.query.SubjectID,
			QueryHash: p.hash,
			Query:     p.resolved.query,
			Meta:      p.meta,
			Results:   []ir.ResultRow{},
			Crop:      p.crop,
		}
		for row, err := range p.rows {
			if err != nil {
				return err
			}
			out.Results = append(out.Results, row)
		}
		e.metrics.ObserveResultRows(len(out.Results))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// QueryToStream runs q and writes the result meta, then each row, to sink
// without buffering the rows.
func (e *Engine) QueryToStream(ctx context.Context, q ir.ObservationQueryContext, sink ResultSink) (_ *StreamSummary, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.QueryToStream",
		trace.WithAttributes(attribute.String("subject.id", q.SubjectID)))
	defer func() { e.finish(span, "stream", err) }()

	var summary *StreamSummary
	err = e.run(ctx, q, func(p *prepared) error {
		summary = &StreamSummary{
			SubjectID: p.resolved.query.SubjectID,
			QueryHash: p.hash,
			Matched:   p.matched.Count,
			Crop:      p.crop,
		}
		if err := sink.WriteMeta(p.meta); err != nil {
			return fmt.Errorf("write meta: %w", err)
		}
		for row, err := range p.rows {
			if err != nil {
				return err
			}
			if err := sink.WriteRow(row); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
			summary.Rows++
		}
		if f, ok := sink.(flusher); ok {
			if err := f.Flush(); err != nil {
				return fmt.Errorf("flush sink: %w", err)
			}
		}
		e.metrics.ObserveResultRows(summary.Rows)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// prepared is a query that has been matched and is ready to read.
type prepared struct {
	hash     string
	resolved *resolvedQuery
	crop     CropReport
	matched  *MatchedObservationSet
	meta     *ResultMeta
	rows     iter.Seq2[ir.ResultRow, error]
}

// run executes the shared query pipeline and hands the prepared result to
// consume while the session is still open. The session is released on
// every path, cancellation included.
func (e *Engine) run(ctx context.Context, q ir.ObservationQueryContext, consume func(*prepared) error) error {
	start := time.Now()
	if err := validateQuery(e.validate, q); err != nil {
		return err
	}
	hash, err := ir.QueryHash(q)
	if err != nil {
		return NewInvalidQueryError("", err.Error(), nil)
	}
	log := e.logger.With("query_hash", hash, "subject_id", q.SubjectID)

	subject, err := LoadSubject(ctx, e.store, q.SubjectID)
	if err != nil {
		return err
	}
	e.metrics.ObserveStage("load_subject", time.Since(start))

	r, err := resolveQuery(subject, q)
	if err != nil {
		return err
	}
	crop, err := e.Cropper().crop(r)
	if err != nil {
		log.Info("query rejected", "estimated_cells", crop.EstimatedCells, "max_cells", crop.MaxCells)
		return err
	}
	if crop.Cropped {
		e.metrics.IncrementCropped()
		log.Info("query cropped",
			"time_periods_requested", len(crop.OriginalTimePeriods),
			"time_periods_kept", len(crop.TimePeriods),
			"estimated_cells", crop.EstimatedCells,
			"max_cells", crop.MaxCells)
	}

	token := e.tokens.Generate()
	log = log.With("token", token)
	session, err := e.store.OpenSession(ctx, token)
	if err != nil {
		return storeError("open session", err)
	}
	defer func() {
		if err := session.Release(ctx); err != nil {
			log.Warn("release session", "error", err)
		}
	}()

	matchStart := time.Now()
	matched, err := e.tracedMatch(ctx, session, r)
	if err != nil {
		return err
	}
	e.metrics.ObserveStage("match", time.Since(matchStart))
	e.metrics.ObserveMatched(matched.Count)

	fp, err := session.Footprint(ctx, matched.Table)
	if err != nil {
		return storeError("read footprint", err)
	}
	options := DedupLocations(subject.Locations)

	p := &prepared{
		hash:     hash,
		resolved: r,
		crop:     crop,
		matched:  matched,
		meta:     BuildResultMeta(subject, fp, r.indicatorIDs, options),
		rows:     e.wrapRowErrors(BuildResults(ctx, session, matched, r.indicatorIDs, options, e.merge)),
	}

	resultsStart := time.Now()
	if err := consume(p); err != nil {
		return err
	}
	e.metrics.ObserveStage("results", time.Since(resultsStart))

	log.Debug("query complete", "matched", matched.Count, "duration", time.Since(start))
	return nil
}

// wrapRowErrors maps read failures to StoreUnavailable.
func (e *Engine) wrapRowErrors(rows iter.Seq2[ir.ResultRow, error]) iter.Seq2[ir.ResultRow, error] {
	return func(yield func(ir.ResultRow, error) bool) {
		for row, err := range rows {
			if err != nil {
				yield(row, storeError("read results", err))
				return
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// finish records the outcome of an operation on its span and metrics.
func (e *Engine) finish(span trace.Span, operation string, err error) {
	defer span.End()
	if err == nil {
		span.SetStatus(codes.Ok, "")
		e.metrics.IncrementOutcome(operation, "ok")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	code := string(ErrorCodeOf(err))
	if code == "" {
		code = "error"
	}
	e.metrics.IncrementOutcome(operation, code)
	if IsStoreUnavailable(err) {
		e.logger.Error("engine operation failed", "operation", operation, "error", err)
	}
}
