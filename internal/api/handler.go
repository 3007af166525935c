// Package api exposes the engine over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/tablebuilder/internal/compiler"
	"github.com/roach88/tablebuilder/internal/engine"
	"github.com/roach88/tablebuilder/internal/export"
	"github.com/roach88/tablebuilder/internal/ir"
	"github.com/roach88/tablebuilder/internal/metrics"
)

// maxBodyBytes bounds a query request body.
const maxBodyBytes = 1 << 20

// Service is the part of the engine the API needs.
type Service interface {
	GetSubjectMeta(ctx context.Context, subjectID string) (*engine.SubjectMeta, error)
	Query(ctx context.Context, q ir.ObservationQueryContext) (*engine.QueryResult, error)
	QueryToStream(ctx context.Context, q ir.ObservationQueryContext, sink engine.ResultSink) (*engine.StreamSummary, error)
}

var _ Service = (*engine.Engine)(nil)

// Handler wires subject endpoints to the engine.
type Handler struct {
	service  Service
	logger   *slog.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
}

// New constructs a handler. gatherer backs GET /metrics and may be nil to
// leave the endpoint out.
func New(service Service, logger *slog.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer) *Handler {
	return &Handler{
		service:  service,
		logger:   logger,
		metrics:  m,
		gatherer: gatherer,
	}
}

// Register mounts the endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/subjects/{subjectID}", func(r chi.Router) {
		r.Get("/meta", h.HandleMeta)
		r.Post("/query", h.HandleQuery)
		r.Post("/query/csv", h.HandleQueryCSV)
	})
	if h.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

// NewRouter returns a router with the standard middleware and every
// endpoint of h mounted.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.countRequests)
	h.Register(r)
	return r
}

// countRequests records each request against its route pattern, so
// subject ids never become label values.
func (h *Handler) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.metrics.IncrementHTTPRequest(route, status)
	})
}

// HandleMeta handles GET /api/subjects/{subjectID}/meta.
func (h *Handler) HandleMeta(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID := chi.URLParam(r, "subjectID")

	meta, err := h.service.GetSubjectMeta(ctx, subjectID)
	if err != nil {
		h.fail(w, r, "subject meta failed", err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// HandleQuery handles POST /api/subjects/{subjectID}/query.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	q, err := decodeQuery(r)
	if err != nil {
		h.fail(w, r, "decode query failed", err)
		return
	}

	res, err := h.service.Query(ctx, q)
	if err != nil {
		h.fail(w, r, "query failed", err)
		return
	}

	h.logger.InfoContext(ctx, "query answered",
		"request_id", middleware.GetReqID(ctx),
		"subject_id", q.SubjectID,
		"query_hash", res.QueryHash,
		"rows", len(res.Results),
		"cropped", res.Crop.Cropped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, res)
}

// HandleQueryCSV handles POST /api/subjects/{subjectID}/query/csv. Rows are
// streamed as they are produced; errors found before the first byte is
// written still get a JSON error response.
func (h *Handler) HandleQueryCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	q, err := decodeQuery(r)
	if err != nil {
		h.fail(w, r, "decode query failed", err)
		return
	}

	sink := &csvResponse{w: w, filename: q.SubjectID + ".csv", CSVSink: export.NewCSVSink(w)}
	summary, err := h.service.QueryToStream(ctx, q, sink)
	if err != nil {
		if !sink.started {
			h.fail(w, r, "csv query failed", err)
			return
		}
		// Headers are gone; all that is left is to cut the body short.
		h.logger.ErrorContext(ctx, "csv stream aborted",
			"request_id", middleware.GetReqID(ctx),
			"subject_id", q.SubjectID,
			"error", err,
		)
		return
	}

	h.logger.InfoContext(ctx, "csv query streamed",
		"request_id", middleware.GetReqID(ctx),
		"subject_id", q.SubjectID,
		"query_hash", summary.QueryHash,
		"rows", summary.Rows,
		"cropped", summary.Crop.Cropped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// csvResponse sets the response headers when the meta arrives, which is
// the point past which errors can no longer change the status code.
type csvResponse struct {
	*export.CSVSink
	w        http.ResponseWriter
	filename string
	started  bool
}

func (c *csvResponse) WriteMeta(meta *engine.ResultMeta) error {
	c.started = true
	c.w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	c.w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", c.filename))
	c.w.WriteHeader(http.StatusOK)
	return c.CSVSink.WriteMeta(meta)
}

func (c *csvResponse) Flush() error {
	if err := c.CSVSink.Flush(); err != nil {
		return err
	}
	if f, ok := c.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// decodeQuery reads the JSON query body. The subject comes from the path;
// a body naming a different subject is rejected.
func decodeQuery(r *http.Request) (ir.ObservationQueryContext, error) {
	subjectID := chi.URLParam(r, "subjectID")

	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return ir.ObservationQueryContext{}, &requestError{status: http.StatusRequestEntityTooLarge, message: "read body: " + err.Error()}
	}

	doc := map[string]any{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return ir.ObservationQueryContext{}, &requestError{status: http.StatusBadRequest, message: "decode body: " + err.Error()}
		}
	}
	if id, ok := doc["subject_id"]; ok && id != subjectID {
		return ir.ObservationQueryContext{}, engine.NewInvalidQueryError("subject_id",
			fmt.Sprintf("body subject %v does not match path subject %q", id, subjectID), nil)
	}
	doc["subject_id"] = subjectID

	normalized, err := json.Marshal(doc)
	if err != nil {
		return ir.ObservationQueryContext{}, fmt.Errorf("encode body: %w", err)
	}
	q, err := compiler.CompileQuery(normalized, compiler.FormatJSON, "request")
	if err != nil {
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			return ir.ObservationQueryContext{}, engine.NewInvalidQueryError(ce.Field, ce.Message, nil)
		}
		return ir.ObservationQueryContext{}, err
	}
	return q, nil
}
