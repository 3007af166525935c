package querysql

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/tablebuilder/internal/queryir"
)

// SQLCompiler compiles QueryIR to parameterised SQL for SQLite.
//
// Every top-level Select ends in ORDER BY <key> COLLATE BINARY ASC so row
// order is deterministic. Values are always placeholders, never interpolated.
type SQLCompiler struct {
	sb sq.StatementBuilderType
}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// Compile converts a query to (sql, params). The query is validated first;
// identifiers that are not plain names are rejected before any SQL is built.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if res := queryir.Validate(q); !res.IsValid {
		return "", nil, res.Err()
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.selectBuilder(query, true).ToSql()
	case *queryir.Select:
		return c.selectBuilder(*query, true).ToSql()
	case queryir.Materialize:
		return c.compileMaterialize(query)
	case *queryir.Materialize:
		return c.compileMaterialize(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) selectBuilder(q queryir.Select, ordered bool) sq.SelectBuilder {
	from := q.From
	if q.Alias != "" {
		from += " " + q.Alias
	}
	b := c.sb.Select(q.Columns...).From(from)
	if q.Filter != nil {
		b = b.Where(c.predicate(q.Filter))
	}
	if ordered {
		b = b.OrderBy(stableOrderKey(q))
	}
	return b
}

// stableOrderKey returns the ORDER BY term for a select.
// COLLATE BINARY keeps text ordering identical across SQLite builds.
func stableOrderKey(q queryir.Select) string {
	key := q.OrderBy
	if key == "" {
		key = "id"
	}
	if q.Alias != "" && !strings.Contains(key, ".") {
		key = q.Alias + "." + key
	}
	return key + " COLLATE BINARY ASC"
}

func (c *SQLCompiler) compileMaterialize(m queryir.Materialize) (string, []any, error) {
	return c.sb.Insert(m.Into).
		Columns(m.Columns...).
		Select(c.selectBuilder(m.Source, true)).
		ToSql()
}

// predicate converts a predicate to a squirrel Sqlizer. Validation has
// already rejected nil and unknown predicates.
func (c *SQLCompiler) predicate(p queryir.Predicate) sq.Sqlizer {
	switch pred := p.(type) {
	case queryir.Equals:
		return sq.Eq{pred.Field: pred.Value}
	case *queryir.Equals:
		return sq.Eq{pred.Field: pred.Value}
	case queryir.InStaged:
		return inStaged(pred)
	case *queryir.InStaged:
		return inStaged(*pred)
	case queryir.InQuery:
		return c.inQuery(pred)
	case *queryir.InQuery:
		return c.inQuery(*pred)
	case queryir.And:
		return c.and(pred)
	case *queryir.And:
		return c.and(*pred)
	default:
		return sq.Expr("1 = 0")
	}
}

func (c *SQLCompiler) and(a queryir.And) sq.Sqlizer {
	if len(a.Predicates) == 0 {
		return sq.Expr("1 = 1")
	}
	conj := make(sq.And, 0, len(a.Predicates))
	for _, p := range a.Predicates {
		conj = append(conj, c.predicate(p))
	}
	return conj
}

func inStaged(in queryir.InStaged) sq.Sqlizer {
	fields := strings.Join(in.Fields, ", ")
	if len(in.Fields) > 1 {
		fields = "(" + fields + ")"
	}
	return sq.Expr(fmt.Sprintf("%s IN (SELECT %s FROM %s)",
		fields, strings.Join(in.Staged.Columns, ", "), in.Staged.Table))
}

func (c *SQLCompiler) inQuery(in queryir.InQuery) sq.Sqlizer {
	return sq.Expr(in.Field+" IN (?)", c.selectBuilder(in.Query, false))
}
