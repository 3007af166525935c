package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/tablebuilder/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func period(year int, code ir.TimeIdentifier) ir.TimePeriod {
	return ir.TimePeriod{Year: year, Identifier: code}
}

// testSubject has one filter with two groups and one indicator group.
func testSubject() ir.Subject {
	two := 2
	return ir.Subject{
		ID:   "subject-1",
		Name: "Pupil absence",
		Filters: []ir.Filter{{
			ID: "gender", Label: "Gender", Name: "gender",
			Groups: []ir.FilterGroup{
				{ID: "gender-default", Label: "Default", Items: []ir.FilterItem{
					{ID: "male", Label: "Male"},
					{ID: "female", Label: "Female"},
				}},
				{ID: "gender-total", Label: "Total", Items: []ir.FilterItem{
					{ID: "gender-all", Label: "Total"},
				}},
			},
		}},
		IndicatorGroups: []ir.IndicatorGroup{{
			ID: "absence", Label: "Absence",
			Indicators: []ir.Indicator{
				{ID: "sess", Label: "Sessions", Name: "sess_possible"},
				{ID: "rate", Label: "Absence rate", Name: "sess_overall_percent", Unit: "%", DecimalPlaces: &two},
			},
		}},
		Locations: []ir.Location{
			{ID: "eng", GeographicLevel: ir.LevelCountry, Code: "E92000001", Name: "England"},
			{ID: "ne", GeographicLevel: ir.LevelRegion, Code: "E12000001", Name: "North East", ParentID: "eng"},
			{ID: "unused", GeographicLevel: ir.LevelRegion, Code: "E12000002", Name: "North West"},
		},
		FilterSequence: []ir.FilterSequenceEntry{{ID: "gender", Groups: []ir.FilterGroupSequenceEntry{
			{ID: "gender-total", Items: []string{"gender-all"}},
		}}},
	}
}

func testObservations() []ir.Observation {
	return []ir.Observation{
		{ID: "o1", SubjectID: "subject-1", LocationID: "eng", TimePeriod: period(2020, ir.AcademicYear),
			FilterItemIDs: []string{"male"}, Measures: map[string]string{"sess": "10", "rate": "4.5"}},
		{ID: "o2", SubjectID: "subject-1", LocationID: "eng", TimePeriod: period(2020, ir.AcademicYear),
			FilterItemIDs: []string{"female"}, Measures: map[string]string{"sess": "20"}},
		{ID: "o3", SubjectID: "subject-1", LocationID: "ne", TimePeriod: period(2019, ir.AcademicYear),
			FilterItemIDs: []string{"male"}, Measures: map[string]string{"sess": "c"}},
		{ID: "o4", SubjectID: "subject-1", LocationID: "ne", TimePeriod: period(2021, ir.AcademicYear),
			FilterItemIDs: []string{"gender-all"}, Measures: map[string]string{"sess": "30"}},
	}
}

// seedStore writes testSubject and testObservations.
func seedStore(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.WriteSubject(ctx, testSubject()); err != nil {
		t.Fatalf("WriteSubject() failed: %v", err)
	}
	if err := s.WriteObservations(ctx, testObservations()); err != nil {
		t.Fatalf("WriteObservations() failed: %v", err)
	}
}
