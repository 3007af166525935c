package engine

import (
	"github.com/shopspring/decimal"
)

// MergeStrategy combines the values one indicator takes across duplicate
// locations for the same time period and filter combination. values are in
// location-name order; a location without an observation contributes "".
type MergeStrategy func(values []string) string

// SumMerge is the default MergeStrategy. Numeric values are summed exactly,
// absent values count as zero, and the result keeps the largest number of
// decimal places among the inputs. When no value is numeric the first
// non-empty value is returned.
func SumMerge(values []string) string {
	var (
		sum     decimal.Decimal
		numeric bool
		places  int32
		first   string
	)
	for _, v := range values {
		if v == "" {
			continue
		}
		if first == "" {
			first = v
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			continue
		}
		numeric = true
		sum = sum.Add(d)
		if exp := d.Exponent(); -exp > places {
			places = -exp
		}
	}
	if !numeric {
		return first
	}
	return sum.StringFixed(places)
}
