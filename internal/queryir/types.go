package queryir

// Query represents an abstract query.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode()
}

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Select reads rows from a table.
//
//	SELECT <columns> FROM <from> <alias> WHERE <filter> ORDER BY <alias>.<order_by>
//
// When a Select is nested inside InQuery it is compiled without ORDER BY;
// set membership does not depend on order.
type Select struct {
	From    string    // table name
	Alias   string    // optional table alias
	Columns []string  // explicit column list, never empty
	Filter  Predicate // nil = no filter
	OrderBy string    // ordering column, defaults to "id"
}

func (Select) queryNode() {}

// Materialize writes the rows of Source into a scratch table.
//
//	INSERT INTO <into> (<columns>) <source>
type Materialize struct {
	Into    string
	Columns []string
	Source  Select
}

func (Materialize) queryNode() {}

// Staged is a handle to a scratch table holding staged values.
// Columns lists the key columns in the order they are compared.
type Staged struct {
	Table   string
	Columns []string
}

// Equals compares a field with a literal value.
//
//	<field> = ?
//
// Value must be a string, int, int64 or bool.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// InStaged tests membership of one or more fields in a staged set.
//
//	<field> IN (SELECT <col> FROM <staged>)
//	(<f1>, <f2>) IN (SELECT <c1>, <c2> FROM <staged>)
//
// len(Fields) must equal len(Staged.Columns).
type InStaged struct {
	Fields []string
	Staged Staged
}

func (InStaged) predicateNode() {}

// InQuery tests membership of a field in the single-column result of a
// nested Select.
//
//	<field> IN (SELECT <col> FROM ... WHERE ...)
type InQuery struct {
	Field string
	Query Select
}

func (InQuery) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
