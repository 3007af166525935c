package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/tablebuilder/internal/engine"
	"github.com/roach88/tablebuilder/internal/metrics"
	"github.com/roach88/tablebuilder/internal/store"
	"github.com/roach88/tablebuilder/internal/testutil"
)

func newTestRouter(t *testing.T, opts ...engine.EngineOption) (http.Handler, *store.Store) {
	t.Helper()
	s := testutil.NewStore(t, testutil.AbsenceFixture())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	opts = append([]engine.EngineOption{engine.WithLogger(logger), engine.WithMetrics(m)}, opts...)
	h := New(engine.New(s, opts...), logger, m, reg)
	return NewRouter(h), s
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestHandleMeta(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/subjects/absence/meta", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var meta engine.SubjectMeta
	if err := json.NewDecoder(rec.Body).Decode(&meta); err != nil {
		t.Fatalf("decode meta: %v", err)
	}
	if meta.SubjectName != "Pupil absence in schools in England" {
		t.Fatalf("unexpected subject name %q", meta.SubjectName)
	}
	if len(meta.Filters) != 2 {
		t.Fatalf("expected 2 filters, got %d", len(meta.Filters))
	}
}

func TestHandleMeta_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/subjects/missing/meta", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Error != "NOT_FOUND" || body.Dimension != "subject" || body.ID != "missing" {
		t.Fatalf("unexpected error body %+v", body)
	}
}

func TestHandleQuery(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/subjects/absence/query", `{"location_ids": ["eng"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var res engine.QueryResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.SubjectID != "absence" {
		t.Fatalf("expected subject from path, got %q", res.SubjectID)
	}
	if len(res.Results) != 5 {
		t.Fatalf("expected 5 rows for England, got %d", len(res.Results))
	}
	if res.QueryHash == "" {
		t.Fatalf("expected query hash")
	}
}

func TestHandleQuery_EmptyBody(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/subjects/absence/query", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for an unrestricted query, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleQuery_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"malformed json", "/api/subjects/absence/query", `{"location_ids": [`, http.StatusBadRequest, "BAD_REQUEST"},
		{"subject mismatch", "/api/subjects/absence/query", `{"subject_id": "other"}`, http.StatusBadRequest, "INVALID_QUERY"},
		{"empty id", "/api/subjects/absence/query", `{"location_ids": [""]}`, http.StatusBadRequest, "INVALID_QUERY"},
		{"unknown field", "/api/subjects/absence/query", `{"colour": "red"}`, http.StatusBadRequest, "INVALID_QUERY"},
		{"unknown indicator", "/api/subjects/absence/query", `{"indicator_ids": ["height"]}`, http.StatusNotFound, "NOT_FOUND"},
		{"unknown subject", "/api/subjects/missing/query", `{}`, http.StatusNotFound, "NOT_FOUND"},
	}
	router, _ := newTestRouter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if body := decodeError(t, rec); body.Error != tt.code {
				t.Fatalf("expected error %s, got %+v", tt.code, body)
			}
		})
	}
}

func TestHandleQuery_TooLarge(t *testing.T) {
	router, _ := newTestRouter(t, engine.WithMaxTableCells(50))

	rec := do(t, router, http.MethodPost, "/api/subjects/absence/query", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Error != "QUERY_TOO_LARGE" || body.Details["max_cells"] != "50" {
		t.Fatalf("unexpected error body %+v", body)
	}
}

func TestHandleQuery_StoreUnavailable(t *testing.T) {
	router, s := newTestRouter(t)
	if err := s.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	rec := do(t, router, http.MethodPost, "/api/subjects/absence/query", `{}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if body := decodeError(t, rec); body.Error != "STORE_UNAVAILABLE" {
		t.Fatalf("unexpected error body %+v", body)
	}
}

func TestHandleQueryCSV(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/subjects/absence/query/csv", `{"location_ids": ["la2"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected csv content type, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="absence.csv"` {
		t.Fatalf("unexpected content disposition %q", cd)
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", lines)
	}
	if lines[1] != "2020,AY,local_authority,E06000001,Hartlepool / Hartlepool UA,Total,Total,50,6.0" {
		t.Fatalf("unexpected first row %q", lines[1])
	}
}

func TestHandleQueryCSV_ErrorBeforeStream(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/subjects/absence/query/csv", `{"location_ids": ["atlantis"]}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json error, got %q", ct)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	do(t, router, http.MethodGet, "/api/subjects/absence/meta", "")
	do(t, router, http.MethodGet, "/api/subjects/missing/meta", "")

	rec := do(t, router, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`tablebuilder_http_requests_total{route="/api/subjects/{subjectID}/meta",status="2xx"} 1`,
		`tablebuilder_http_requests_total{route="/api/subjects/{subjectID}/meta",status="4xx"} 1`,
		`tablebuilder_query_outcomes_total{code="NOT_FOUND",operation="meta"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{engine.NewNotFoundError("subject", "x"), http.StatusNotFound},
		{engine.NewInvalidQueryError("subject_id", "required", nil), http.StatusBadRequest},
		{engine.NewQueryTooLargeError(100, 10), http.StatusBadRequest},
		{&engine.QueryError{Code: engine.ErrCodeStoreUnavailable}, http.StatusServiceUnavailable},
		{&requestError{status: http.StatusRequestEntityTooLarge}, http.StatusRequestEntityTooLarge},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestDecodeQuery_TimePeriod(t *testing.T) {
	router, _ := newTestRouter(t)
	body, _ := json.Marshal(map[string]any{
		"time_period": map[string]any{
			"range": map[string]any{
				"start": map[string]any{"year": 2019, "code": "AY"},
				"end":   map[string]any{"year": 2020, "code": "AY"},
			},
		},
		"location_ids": []string{"eng"},
	})

	rec := do(t, router, http.MethodPost, "/api/subjects/absence/query", string(bytes.TrimSpace(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res engine.QueryResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(res.Results) != 4 {
		t.Fatalf("expected 4 England rows in 2019-2020, got %d", len(res.Results))
	}
}
