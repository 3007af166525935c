package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tablebuilder/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes the emitted rows to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Rows     []ir.ResultRow
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Rows) > 0 {
		fmt.Fprintf(&buf, "\nRows:\n")
		for i, r := range e.Rows {
			fmt.Fprintf(&buf, "  [%d] %s %s %s %v %v\n",
				i+1, r.ObservationID, r.LocationID, r.TimePeriod, r.FilterItemIDs, r.Measures)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. A failed query fails every assertion except error.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	if a.Type == AssertError {
		return assertError(result, a)
	}
	if result.ErrorCode != "" {
		return &AssertionError{
			Type:     a.Type,
			Expected: "a successful query",
			Actual:   fmt.Sprintf("query failed with %s", result.ErrorCode),
		}
	}

	switch a.Type {
	case AssertRowCount:
		return assertRowCount(result.Rows, a)
	case AssertRowContains:
		return assertRowContains(result.Rows, a)
	case AssertRowOrder:
		return assertRowOrder(result.Rows, a)
	case AssertCrop:
		return assertCrop(result, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertError(result *Result, a Assertion) error {
	if string(result.ErrorCode) == a.Code {
		return nil
	}
	actual := "query succeeded"
	if result.ErrorCode != "" {
		actual = string(result.ErrorCode)
	}
	return &AssertionError{Type: AssertError, Expected: a.Code, Actual: actual}
}

func assertRowCount(rows []ir.ResultRow, a Assertion) error {
	if len(rows) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRowCount,
		Expected: fmt.Sprintf("%d rows", a.Count),
		Actual:   fmt.Sprintf("%d rows", len(rows)),
		Rows:     rows,
	}
}

// assertRowContains finds a row by location, period and filter items, then
// checks the expected measures against it.
func assertRowContains(rows []ir.ResultRow, a Assertion) error {
	period, _ := ir.ParseTimePeriod(a.Period)

	for _, r := range rows {
		if r.LocationID != a.Location || r.TimePeriod != period {
			continue
		}
		if !containsAll(r.FilterItemIDs, a.Items) {
			continue
		}
		for k, want := range a.Measures {
			if got, ok := r.Measures[k]; !ok || got != want {
				return &AssertionError{
					Type:     AssertRowContains,
					Expected: fmt.Sprintf("%s=%q on %s %s", k, want, a.Location, a.Period),
					Actual:   fmt.Sprintf("%s=%q", k, got),
					Rows:     rows,
				}
			}
		}
		return nil
	}

	return &AssertionError{
		Type:     AssertRowContains,
		Expected: fmt.Sprintf("row for %s %s with items %v", a.Location, a.Period, a.Items),
		Actual:   "not found",
		Rows:     rows,
	}
}

// assertRowOrder checks that the observations appear in the given order.
// They need not be consecutive.
func assertRowOrder(rows []ir.ResultRow, a Assertion) error {
	positions := make(map[string]int, len(rows))
	for i, r := range rows {
		if _, ok := positions[r.ObservationID]; !ok {
			positions[r.ObservationID] = i + 1
		}
	}

	for _, id := range a.Observations {
		if positions[id] == 0 {
			return &AssertionError{
				Type:     AssertRowOrder,
				Expected: fmt.Sprintf("all observations present: %v", a.Observations),
				Actual:   fmt.Sprintf("missing observation: %s", id),
				Rows:     rows,
			}
		}
	}
	for i := 1; i < len(a.Observations); i++ {
		prev, curr := a.Observations[i-1], a.Observations[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertRowOrder,
				Expected: fmt.Sprintf("observations in order: %v", a.Observations),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Rows: rows,
			}
		}
	}
	return nil
}

func assertCrop(result *Result, a Assertion) error {
	crop := result.Summary.Crop
	if crop.Cropped != *a.Cropped {
		return &AssertionError{
			Type:     AssertCrop,
			Expected: fmt.Sprintf("cropped=%t", *a.Cropped),
			Actual:   fmt.Sprintf("cropped=%t (estimated %d cells, budget %d)", crop.Cropped, crop.EstimatedCells, crop.MaxCells),
		}
	}
	if len(a.Periods) == 0 {
		return nil
	}

	got := make([]string, len(crop.TimePeriods))
	for i, p := range crop.TimePeriods {
		got[i] = p.String()
	}
	if !slices.Equal(got, a.Periods) {
		return &AssertionError{
			Type:     AssertCrop,
			Expected: fmt.Sprintf("periods %v", a.Periods),
			Actual:   fmt.Sprintf("periods %v", got),
		}
	}
	return nil
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}
