package queryir

import (
	"fmt"
	"regexp"
)

// ValidationResult contains the problems found in a query.
type ValidationResult struct {
	// IsValid is true when Errors is empty.
	IsValid bool

	Errors []string
}

// Err returns the first problem as an error, or nil.
func (r ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return fmt.Errorf("invalid query: %s", r.Errors[0])
}

// identPattern matches table, alias and column names, optionally qualified
// with a table alias ("o.location_id").
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Validate checks that a query can be compiled safely.
//
// Rules:
//  1. Identifiers are plain (optionally alias-qualified) names
//  2. Selects name their columns explicitly
//  3. InStaged arity matches the staged column count
//  4. Literal values are string, int, int64 or bool
//  5. Nested selects return exactly one column
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{errors: []string{}}
	v.validateQuery(query)

	return ValidationResult{
		IsValid: len(v.errors) == 0,
		Errors:  v.errors,
	}
}

type validator struct {
	errors []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) ident(kind, name string) {
	if !identPattern.MatchString(name) {
		v.addError("%s %q is not a valid identifier", kind, name)
	}
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addError("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	case Materialize:
		v.validateMaterialize(query)
	case *Materialize:
		v.validateMaterialize(*query)
	default:
		v.addError("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	v.ident("table", sel.From)
	if sel.Alias != "" {
		v.ident("alias", sel.Alias)
	}
	if sel.OrderBy != "" {
		v.ident("order column", sel.OrderBy)
	}
	if len(sel.Columns) == 0 {
		v.addError("select from %q has no columns", sel.From)
	}
	for _, c := range sel.Columns {
		v.ident("column", c)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validateMaterialize(m Materialize) {
	v.ident("table", m.Into)
	if len(m.Columns) != len(m.Source.Columns) {
		v.addError("materialize into %q: %d columns but source selects %d",
			m.Into, len(m.Columns), len(m.Source.Columns))
	}
	for _, c := range m.Columns {
		v.ident("column", c)
	}
	v.validateSelect(m.Source)
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		v.addError("nil predicate")
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case InStaged:
		v.validateInStaged(pred)
	case *InStaged:
		v.validateInStaged(*pred)
	case InQuery:
		v.validateInQuery(pred)
	case *InQuery:
		v.validateInQuery(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addError("unknown predicate type: %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	v.ident("field", eq.Field)
	switch eq.Value.(type) {
	case string, int, int64, bool:
	default:
		v.addError("field %q compared to unsupported value type %T", eq.Field, eq.Value)
	}
}

func (v *validator) validateInStaged(in InStaged) {
	if len(in.Fields) == 0 {
		v.addError("staged membership on %q has no fields", in.Staged.Table)
	}
	if len(in.Fields) != len(in.Staged.Columns) {
		v.addError("staged membership on %q: %d fields but %d staged columns",
			in.Staged.Table, len(in.Fields), len(in.Staged.Columns))
	}
	for _, f := range in.Fields {
		v.ident("field", f)
	}
	v.ident("staged table", in.Staged.Table)
	for _, c := range in.Staged.Columns {
		v.ident("staged column", c)
	}
}

func (v *validator) validateInQuery(in InQuery) {
	v.ident("field", in.Field)
	if len(in.Query.Columns) != 1 {
		v.addError("nested select for %q must return one column, got %d", in.Field, len(in.Query.Columns))
	}
	v.validateSelect(in.Query)
}
