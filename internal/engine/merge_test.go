package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSumMerge(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"sums numbers", []string{"10", "40"}, "50"},
		{"absent counts as zero", []string{"10", ""}, "10"},
		{"keeps widest precision", []string{"1.5", "2"}, "3.5"},
		{"exact decimal sum", []string{"0.1", "0.2"}, "0.3"},
		{"ignores non-numeric when a number exists", []string{"6.0", "x"}, "6.0"},
		{"first non-empty when nothing numeric", []string{"", "c", "x"}, "c"},
		{"all absent", []string{"", ""}, ""},
		{"no values", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SumMerge(tt.values))
		})
	}
}
