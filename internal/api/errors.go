package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/tablebuilder/internal/engine"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Dimension string            `json:"dimension,omitempty"`
	ID        string            `json:"id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// requestError is a transport-level failure that never reached the engine.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	var re *requestError
	if errors.As(err, &re) {
		return re.status
	}
	switch engine.ErrorCodeOf(err) {
	case engine.ErrCodeNotFound:
		return http.StatusNotFound
	case engine.ErrCodeInvalidQuery, engine.ErrCodeQueryTooLarge:
		return http.StatusBadRequest
	case engine.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	if errors.Is(err, context.Canceled) {
		h.logger.DebugContext(ctx, "request cancelled", "request_id", middleware.GetReqID(ctx))
		return
	}

	status := StatusFor(err)
	level := h.logger.WarnContext
	if status >= http.StatusInternalServerError {
		level = h.logger.ErrorContext
	}
	level(ctx, msg,
		"request_id", middleware.GetReqID(ctx),
		"status", status,
		"error", err,
	)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, newErrorBody(err, status))
}

func newErrorBody(err error, status int) errorBody {
	var qe *engine.QueryError
	if errors.As(err, &qe) {
		return errorBody{
			Error:     string(qe.Code),
			Message:   qe.Message,
			Dimension: qe.Dimension,
			ID:        qe.ID,
			Details:   qe.Details,
		}
	}
	var re *requestError
	if errors.As(err, &re) {
		return errorBody{Error: "BAD_REQUEST", Message: re.message}
	}
	// Internal failures keep their cause in the log only.
	if status >= http.StatusInternalServerError {
		return errorBody{Error: "INTERNAL", Message: http.StatusText(status)}
	}
	return errorBody{Error: "BAD_REQUEST", Message: err.Error()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
