package compiler

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tablebuilder/internal/ir"
)

//go:embed query.cue
var querySchema string

// Format is the syntax of a query definition file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported query file %q: want .yaml, .yml, .json or .cue", path)
	}
}

// LoadQuery reads and compiles a query definition file.
func LoadQuery(path string) (ir.ObservationQueryContext, error) {
	format, err := FormatOf(path)
	if err != nil {
		return ir.ObservationQueryContext{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.ObservationQueryContext{}, fmt.Errorf("read query: %w", err)
	}
	return CompileQuery(data, format, path)
}

// CompileQuery compiles a query definition against the #Query schema.
//
// YAML and JSON documents are the query itself. A CUE file either is the
// query or declares it under a top-level "query" field, and may use CUE
// expressions to build it. filename is only used in error positions.
func CompileQuery(data []byte, format Format, filename string) (ir.ObservationQueryContext, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(querySchema, cue.Filename("query.cue"))
	if err := schema.Err(); err != nil {
		return ir.ObservationQueryContext{}, formatCUEError(err)
	}

	var v cue.Value
	switch format {
	case FormatYAML, FormatJSON:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return ir.ObservationQueryContext{}, &CompileError{Field: "document", Message: err.Error()}
		}
		if _, ok := doc.(map[string]any); !ok {
			return ir.ObservationQueryContext{}, &CompileError{Field: "document", Message: "query must be a mapping"}
		}
		v = ctx.Encode(doc)
	case FormatCUE:
		v = ctx.CompileBytes(data, cue.Filename(filename))
		if q := v.LookupPath(cue.ParsePath("query")); q.Exists() {
			v = q
		}
	default:
		return ir.ObservationQueryContext{}, fmt.Errorf("unsupported query format %q", format)
	}
	if err := v.Err(); err != nil {
		return ir.ObservationQueryContext{}, formatCUEError(err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Query")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return ir.ObservationQueryContext{}, formatCUEError(err)
	}

	var q ir.ObservationQueryContext
	if err := unified.Decode(&q); err != nil {
		return ir.ObservationQueryContext{}, formatCUEError(err)
	}
	return q, nil
}

// EncodeQuery renders a query as YAML, the format the CLI writes back.
func EncodeQuery(q ir.ObservationQueryContext) ([]byte, error) {
	data, err := yaml.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	return data, nil
}
