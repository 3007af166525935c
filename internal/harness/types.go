package harness

import (
	"github.com/roach88/tablebuilder/internal/engine"
	"github.com/roach88/tablebuilder/internal/ir"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates every assertion held.
	Pass bool `json:"pass"`

	// Rows are the result rows in emission order.
	Rows []ir.ResultRow `json:"rows"`

	// CSV is the result as the export sink writes it. Empty when the
	// query failed.
	CSV []byte `json:"-"`

	// Summary is nil when the query failed.
	Summary *engine.StreamSummary `json:"summary,omitempty"`

	// ErrorCode is the code of a failed query, or "" on success.
	ErrorCode engine.ErrorCode `json:"error_code,omitempty"`

	// Errors contains assertion failure messages.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Rows:   []ir.ResultRow{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
