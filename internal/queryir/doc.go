// Package queryir provides the abstract query representation used by the
// observation matcher.
//
// QueryIR is the boundary between the matcher and the SQL backend. The
// matcher describes which observations it wants; querysql turns that
// description into parameterised SQL.
//
//	[matcher] → [Query IR] → [querysql] → SQLite
//
// FRAGMENT:
//
//   - Select(from, alias, columns, filter) with explicit columns
//   - Materialize(into, columns, select) to write a matched set once
//   - Predicates: Equals, InStaged, InQuery, And
//
// Large id lists never appear inline. They are staged into scratch tables
// first and referenced through a Staged handle, so the shape and cost of
// the generated plan do not depend on selection size.
//
// SEALED INTERFACES:
//
// Query and Predicate use the marker method pattern. Only types in this
// package implement them, which keeps backend type switches exhaustive:
//
//	switch q := query.(type) {
//	case Select:
//	case Materialize:
//	}
//
// Identifiers (tables, aliases, columns) are interpolated into SQL by the
// backend, so Validate rejects anything that is not a plain identifier.
// Values are always parameterised.
package queryir
