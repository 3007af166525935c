package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablebuilder/internal/compiler"
	"github.com/roach88/tablebuilder/internal/engine"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]int{"rows": 2}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("Query is valid"))
	assert.Equal(t, "Query is valid\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	_, readErr := os.ReadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	err := formatter.Fail("failed to load query", readErr)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, strings.HasPrefix(buf.String(), "Error [E_IO]: open "), buf.String())
	assert.NotContains(t, buf.String(), "Details:")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	path := filepath.Join(t.TempDir(), "missing.yaml")
	_, readErr := os.ReadFile(path)
	_ = formatter.Fail("failed to load query", readErr)

	assert.Contains(t, buf.String(), "Error [E_IO]")
	assert.Contains(t, buf.String(), "Details: map[path:"+path+"]")
}

func TestOutputFormatter_Fail(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
		wantDim  string
	}{
		{
			name:     "not found",
			err:      engine.NewNotFoundError("location", "atlantis"),
			wantCode: "NOT_FOUND",
			wantExit: ExitFailure,
			wantDim:  "location",
		},
		{
			name:     "invalid query",
			err:      engine.NewInvalidQueryError("time_period", "start after end", nil),
			wantCode: "INVALID_QUERY",
			wantExit: ExitFailure,
			wantDim:  "time_period",
		},
		{
			name:     "store unavailable",
			err:      &engine.QueryError{Code: engine.ErrCodeStoreUnavailable, Message: "database is locked"},
			wantCode: "STORE_UNAVAILABLE",
			wantExit: ExitCommandError,
		},
		{
			name:     "compile error",
			err:      &compiler.CompileError{Field: "colour", Message: "field not allowed"},
			wantCode: ErrCodeCompile,
			wantExit: ExitFailure,
			wantDim:  "colour",
		},
		{
			name:     "anything else",
			err:      errors.New("disk full"),
			wantCode: ErrCodeGeneric,
			wantExit: ExitCommandError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			err := formatter.Fail("command failed", tt.err)

			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantDim, resp.Error.Dimension)
		})
	}
}

func TestOutputFormatter_FailTextShowsID(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	_ = formatter.Fail("query failed", engine.NewNotFoundError("location", "atlantis"))

	assert.Contains(t, buf.String(), "Error [NOT_FOUND]")
	assert.Contains(t, buf.String(), "(location=atlantis)")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, diag := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: tt.verbose}

			formatter.VerboseLog("Loaded query for subject %s", "absence")

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Contains(t, diag.String(), "Loaded query for subject absence")
			} else {
				assert.Empty(t, diag.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "x")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
