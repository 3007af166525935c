package querysql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablebuilder/internal/queryir"
)

func locations() queryir.Staged {
	return queryir.Staged{Table: "tb_1_locations", Columns: []string{"id"}}
}

func TestCompileSelect_Basic(t *testing.T) {
	c := NewSQLCompiler()

	sql, params, err := c.Compile(queryir.Select{
		From:    "observations",
		Alias:   "o",
		Columns: []string{"o.id"},
		Filter:  queryir.Equals{Field: "o.subject_id", Value: "subject-1"},
	})

	require.NoError(t, err)
	assert.Equal(t, "SELECT o.id FROM observations o WHERE o.subject_id = ? ORDER BY o.id COLLATE BINARY ASC", sql)
	assert.Equal(t, []any{"subject-1"}, params)
}

func TestCompileSelect_AlwaysOrdered(t *testing.T) {
	c := NewSQLCompiler()

	tests := []struct {
		name  string
		query queryir.Select
		want  string
	}{
		{"default key", queryir.Select{From: "locations", Columns: []string{"id"}}, "ORDER BY id COLLATE BINARY ASC"},
		{"custom key", queryir.Select{From: "t", Columns: []string{"rowid"}, OrderBy: "rowid"}, "ORDER BY rowid COLLATE BINARY ASC"},
		{"aliased", queryir.Select{From: "t", Alias: "x", Columns: []string{"x.id"}}, "ORDER BY x.id COLLATE BINARY ASC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, _, err := c.Compile(tt.query)
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(sql, tt.want), sql)
		})
	}
}

func TestCompileSelect_StagedMembership(t *testing.T) {
	c := NewSQLCompiler()

	sql, params, err := c.Compile(queryir.Select{
		From:    "observations",
		Alias:   "o",
		Columns: []string{"o.id"},
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.InStaged{Fields: []string{"o.location_id"}, Staged: locations()},
			queryir.InStaged{
				Fields: []string{"o.year", "o.time_identifier"},
				Staged: queryir.Staged{Table: "tb_1_periods", Columns: []string{"year", "time_identifier"}},
			},
		}},
	})

	require.NoError(t, err)
	assert.Contains(t, sql, "o.location_id IN (SELECT id FROM tb_1_locations)")
	assert.Contains(t, sql, "(o.year, o.time_identifier) IN (SELECT year, time_identifier FROM tb_1_periods)")
	assert.Contains(t, sql, " AND ")
	assert.Empty(t, params, "staged ids are never inlined")
}

func TestCompileSelect_PlanShapeIndependentOfSelectionSize(t *testing.T) {
	c := NewSQLCompiler()
	q := queryir.Select{
		From:    "observations",
		Alias:   "o",
		Columns: []string{"o.id"},
		Filter:  queryir.InStaged{Fields: []string{"o.location_id"}, Staged: locations()},
	}

	a, _, err := c.Compile(q)
	require.NoError(t, err)
	b, _, err := c.Compile(q)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotContains(t, a, "?")
}

func TestCompileSelect_NestedQueryUnordered(t *testing.T) {
	c := NewSQLCompiler()

	sql, params, err := c.Compile(queryir.Select{
		From:    "observations",
		Alias:   "o",
		Columns: []string{"o.id"},
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "o.subject_id", Value: "s"},
			queryir.InQuery{Field: "o.id", Query: queryir.Select{
				From:    "observation_filter_items",
				Columns: []string{"observation_id"},
				Filter: queryir.InStaged{
					Fields: []string{"filter_item_id"},
					Staged: queryir.Staged{Table: "tb_1_filter_0", Columns: []string{"id"}},
				},
			}},
		}},
	})

	require.NoError(t, err)
	assert.Contains(t, sql, "o.id IN (SELECT observation_id FROM observation_filter_items WHERE filter_item_id IN (SELECT id FROM tb_1_filter_0))")
	assert.Equal(t, 1, strings.Count(sql, "ORDER BY"), "only the outer select is ordered")
	assert.Equal(t, []any{"s"}, params)
}

func TestCompileMaterialize(t *testing.T) {
	c := NewSQLCompiler()

	sql, params, err := c.Compile(queryir.Materialize{
		Into:    "tb_1_matched",
		Columns: []string{"id"},
		Source: queryir.Select{
			From:    "observations",
			Alias:   "o",
			Columns: []string{"o.id"},
			Filter:  queryir.Equals{Field: "o.subject_id", Value: "s"},
		},
	})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sql, "INSERT INTO tb_1_matched (id)"), sql)
	assert.Contains(t, sql, "SELECT o.id FROM observations o WHERE o.subject_id = ?")
	assert.True(t, strings.HasSuffix(sql, "ORDER BY o.id COLLATE BINARY ASC"), sql)
	assert.Equal(t, []any{"s"}, params)
}

func TestCompile_RejectsInvalidQueries(t *testing.T) {
	c := NewSQLCompiler()

	tests := []struct {
		name  string
		query queryir.Query
	}{
		{"nil", nil},
		{"injection in alias", queryir.Select{From: "t", Alias: "x; --", Columns: []string{"id"}}},
		{"injection in staged table", queryir.Select{From: "t", Columns: []string{"id"}, Filter: queryir.InStaged{
			Fields: []string{"id"},
			Staged: queryir.Staged{Table: "x) OR 1=1 --", Columns: []string{"id"}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := c.Compile(tt.query)
			assert.Error(t, err)
		})
	}
}

func TestCompile_EmptyAndIsTrue(t *testing.T) {
	c := NewSQLCompiler()

	sql, _, err := c.Compile(queryir.Select{From: "t", Columns: []string{"id"}, Filter: queryir.And{}})

	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE 1 = 1")
}
