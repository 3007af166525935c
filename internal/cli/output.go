package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/tablebuilder/internal/compiler"
	"github.com/roach88/tablebuilder/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The query was rejected (not found, invalid, too large) or scenarios failed
	ExitCommandError = 2 // Command error (invalid paths, database not found, store unavailable, etc.)
)

// Error codes for failures that do not come from the engine.
const (
	ErrCodeGeneric     = "E_GENERIC"
	ErrCodeCompile     = "E_COMPILE"
	ErrCodeIO          = "E_IO"
	ErrCodeTestsFailed = "E_TEST_FAILED"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// newFormatter builds the formatter for a command from the global flags.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status    string    `json:"status"`               // "ok" or "error"
	Data      any       `json:"data,omitempty"`       // success payload
	Error     *CLIError `json:"error,omitempty"`      // error details
	QueryHash string    `json:"query_hash,omitempty"` // correlates with server logs
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code      string `json:"code"` // engine error code or E_* for CLI failures
	Message   string `json:"message"`
	Dimension string `json:"dimension,omitempty"`
	ID        string `json:"id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format. Text
// output prints data with fmt, so callers pass a preformatted string for
// anything structured.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

func (f *OutputFormatter) writeError(e *CLIError) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "error", Error: e})
	}

	switch {
	case e.Dimension != "" && e.ID != "":
		fmt.Fprintf(f.Writer, "Error [%s]: %s (%s=%s)\n", e.Code, e.Message, e.Dimension, e.ID)
	case e.Dimension != "":
		fmt.Fprintf(f.Writer, "Error [%s]: %s (%s)\n", e.Code, e.Message, e.Dimension)
	default:
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", e.Code, e.Message)
	}
	if f.Verbose && e.Details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", e.Details)
	}
	return nil
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// Fail reports err in the configured format and returns the ExitError the
// command should return.
//
// Engine errors keep their code. Rejected queries exit with ExitFailure.
// Everything else, an unavailable store included, exits with
// ExitCommandError.
func (f *OutputFormatter) Fail(message string, err error) error {
	cliErr := &CLIError{Code: ErrCodeGeneric, Message: err.Error()}
	exit := ExitCommandError

	var qe *engine.QueryError
	var ce *compiler.CompileError
	var pe *fs.PathError
	switch {
	case errors.As(err, &qe):
		cliErr = &CLIError{Code: string(qe.Code), Message: qe.Message, Dimension: qe.Dimension, ID: qe.ID}
		if len(qe.Details) > 0 {
			cliErr.Details = qe.Details
		}
		if !qe.Retryable() {
			exit = ExitFailure
		}
	case errors.As(err, &ce):
		cliErr = &CLIError{Code: ErrCodeCompile, Message: ce.Error(), Dimension: ce.Field}
		exit = ExitFailure
	case errors.As(err, &pe):
		cliErr = &CLIError{Code: ErrCodeIO, Message: err.Error(), Details: map[string]string{"path": pe.Path}}
	}

	if writeErr := f.writeError(cliErr); writeErr != nil {
		return WrapExitError(ExitCommandError, "write output", writeErr)
	}
	return WrapExitError(exit, message, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
