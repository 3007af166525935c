package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func matchedSelect() Select {
	return Select{
		From:    "observations",
		Alias:   "o",
		Columns: []string{"o.id"},
		Filter: And{Predicates: []Predicate{
			Equals{Field: "o.subject_id", Value: "subject-1"},
			InStaged{Fields: []string{"o.location_id"}, Staged: Staged{Table: "tb_1_locations", Columns: []string{"id"}}},
			InStaged{
				Fields: []string{"o.year", "o.time_identifier"},
				Staged: Staged{Table: "tb_1_periods", Columns: []string{"year", "time_identifier"}},
			},
			InQuery{Field: "o.id", Query: Select{
				From:    "observation_filter_items",
				Columns: []string{"observation_id"},
				Filter:  InStaged{Fields: []string{"filter_item_id"}, Staged: Staged{Table: "tb_1_filter_0", Columns: []string{"id"}}},
			}},
		}},
	}
}

func TestValidate_ValidQueries(t *testing.T) {
	tests := []struct {
		name  string
		query Query
	}{
		{"select", matchedSelect()},
		{"pointer select", &Select{From: "locations", Columns: []string{"id"}}},
		{"materialize", Materialize{Into: "tb_1_matched", Columns: []string{"id"}, Source: matchedSelect()}},
		{"empty and", Select{From: "t", Columns: []string{"id"}, Filter: And{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.query)
			assert.True(t, result.IsValid, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
			assert.NoError(t, result.Err())
		})
	}
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr string
	}{
		{
			name:    "nil query",
			query:   nil,
			wantErr: "nil query",
		},
		{
			name:    "no columns",
			query:   Select{From: "observations"},
			wantErr: "has no columns",
		},
		{
			name:    "injected table name",
			query:   Select{From: "observations; DROP TABLE x", Columns: []string{"id"}},
			wantErr: "not a valid identifier",
		},
		{
			name: "arity mismatch",
			query: Select{From: "o", Columns: []string{"id"}, Filter: InStaged{
				Fields: []string{"year", "time_identifier"},
				Staged: Staged{Table: "tb_periods", Columns: []string{"year"}},
			}},
			wantErr: "2 fields but 1 staged columns",
		},
		{
			name: "float literal",
			query: Select{From: "o", Columns: []string{"id"}, Filter: Equals{
				Field: "value", Value: 1.5,
			}},
			wantErr: "unsupported value type float64",
		},
		{
			name: "nested select with two columns",
			query: Select{From: "o", Columns: []string{"id"}, Filter: InQuery{
				Field: "id",
				Query: Select{From: "x", Columns: []string{"a", "b"}},
			}},
			wantErr: "must return one column",
		},
		{
			name: "materialize column mismatch",
			query: Materialize{Into: "m", Columns: []string{"id", "extra"}, Source: Select{
				From: "o", Columns: []string{"id"},
			}},
			wantErr: "2 columns but source selects 1",
		},
		{
			name:    "nil predicate inside and",
			query:   Select{From: "o", Columns: []string{"id"}, Filter: And{Predicates: []Predicate{nil}}},
			wantErr: "nil predicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.query)
			assert.False(t, result.IsValid)
			assert.Error(t, result.Err())
			joined := ""
			for _, e := range result.Errors {
				joined += e + "\n"
			}
			assert.Contains(t, joined, tt.wantErr)
		})
	}
}

func TestSealedInterfaces(t *testing.T) {
	queries := []Query{Select{}, Materialize{}}
	predicates := []Predicate{Equals{}, InStaged{}, InQuery{}, And{}}

	assert.Len(t, queries, 2)
	assert.Len(t, predicates, 4)
}
