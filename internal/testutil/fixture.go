package testutil

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tablebuilder/internal/ir"
	"github.com/roach88/tablebuilder/internal/store"
)

//go:embed fixtures/absence.yaml
var absenceYAML []byte

// Fixture is a subject with its locations and observations, in the YAML
// shape used by test data and scenarios.
type Fixture struct {
	Subject      FixtureSubject       `yaml:"subject"`
	Locations    []FixtureLocation    `yaml:"locations"`
	Observations []FixtureObservation `yaml:"observations"`
}

type FixtureSubject struct {
	ID                string                           `yaml:"id"`
	Name              string                           `yaml:"name"`
	Filters           []FixtureFilter                  `yaml:"filters"`
	IndicatorGroups   []FixtureIndicatorGroup          `yaml:"indicator_groups"`
	FilterSequence    []ir.FilterSequenceEntry         `yaml:"filter_sequence,omitempty"`
	IndicatorSequence []ir.IndicatorGroupSequenceEntry `yaml:"indicator_sequence,omitempty"`
}

type FixtureFilter struct {
	ID     string               `yaml:"id"`
	Label  string               `yaml:"label"`
	Hint   string               `yaml:"hint,omitempty"`
	Name   string               `yaml:"name"`
	Groups []FixtureFilterGroup `yaml:"groups"`
}

type FixtureFilterGroup struct {
	ID    string        `yaml:"id"`
	Label string        `yaml:"label"`
	Items []FixtureItem `yaml:"items"`
}

type FixtureItem struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

type FixtureIndicatorGroup struct {
	ID         string             `yaml:"id"`
	Label      string             `yaml:"label"`
	Indicators []FixtureIndicator `yaml:"indicators"`
}

type FixtureIndicator struct {
	ID            string `yaml:"id"`
	Label         string `yaml:"label"`
	Name          string `yaml:"name"`
	Unit          string `yaml:"unit,omitempty"`
	DecimalPlaces *int   `yaml:"decimal_places,omitempty"`
}

type FixtureLocation struct {
	ID     string `yaml:"id"`
	Level  string `yaml:"level"`
	Code   string `yaml:"code"`
	Name   string `yaml:"name"`
	Parent string `yaml:"parent,omitempty"`
}

// FixtureObservation writes its period as "<year>_<identifier>".
type FixtureObservation struct {
	ID       string            `yaml:"id"`
	Location string            `yaml:"location"`
	Period   string            `yaml:"period"`
	Items    []string          `yaml:"items"`
	Measures map[string]string `yaml:"measures"`
}

// ParseFixture decodes a YAML fixture.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if f.Subject.ID == "" {
		return nil, fmt.Errorf("parse fixture: subject.id is required")
	}
	return &f, nil
}

// LoadFixture reads and decodes a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// AbsenceFixture returns the built-in pupil absence fixture.
func AbsenceFixture() *Fixture {
	f, err := ParseFixture(absenceYAML)
	if err != nil {
		panic(err)
	}
	return f
}

// IRSubject converts the fixture subject, locations included.
func (f *Fixture) IRSubject() ir.Subject {
	s := ir.Subject{
		ID:                f.Subject.ID,
		Name:              f.Subject.Name,
		FilterSequence:    f.Subject.FilterSequence,
		IndicatorSequence: f.Subject.IndicatorSequence,
	}
	for _, ff := range f.Subject.Filters {
		filter := ir.Filter{ID: ff.ID, Label: ff.Label, Hint: ff.Hint, Name: ff.Name}
		for _, fg := range ff.Groups {
			group := ir.FilterGroup{ID: fg.ID, FilterID: ff.ID, Label: fg.Label}
			for _, fi := range fg.Items {
				group.Items = append(group.Items, ir.FilterItem{ID: fi.ID, FilterGroupID: fg.ID, Label: fi.Label})
			}
			filter.Groups = append(filter.Groups, group)
		}
		s.Filters = append(s.Filters, filter)
	}
	for _, fg := range f.Subject.IndicatorGroups {
		group := ir.IndicatorGroup{ID: fg.ID, Label: fg.Label}
		for _, fi := range fg.Indicators {
			group.Indicators = append(group.Indicators, ir.Indicator{
				ID:               fi.ID,
				IndicatorGroupID: fg.ID,
				Label:            fi.Label,
				Name:             fi.Name,
				Unit:             fi.Unit,
				DecimalPlaces:    fi.DecimalPlaces,
			})
		}
		s.IndicatorGroups = append(s.IndicatorGroups, group)
	}
	for _, fl := range f.Locations {
		s.Locations = append(s.Locations, ir.Location{
			ID:              fl.ID,
			GeographicLevel: ir.GeographicLevel(fl.Level),
			Code:            fl.Code,
			Name:            fl.Name,
			ParentID:        fl.Parent,
		})
	}
	return s
}

// IRObservations converts the fixture observations.
func (f *Fixture) IRObservations() ([]ir.Observation, error) {
	out := make([]ir.Observation, 0, len(f.Observations))
	for _, fo := range f.Observations {
		period, err := ir.ParseTimePeriod(fo.Period)
		if err != nil {
			return nil, fmt.Errorf("observation %s: %w", fo.ID, err)
		}
		out = append(out, ir.Observation{
			ID:            fo.ID,
			SubjectID:     f.Subject.ID,
			LocationID:    fo.Location,
			TimePeriod:    period,
			FilterItemIDs: fo.Items,
			Measures:      fo.Measures,
		})
	}
	return out, nil
}

// Seed writes the fixture into s.
func (f *Fixture) Seed(ctx context.Context, s *store.Store) error {
	if err := s.WriteSubject(ctx, f.IRSubject()); err != nil {
		return err
	}
	observations, err := f.IRObservations()
	if err != nil {
		return err
	}
	return s.WriteObservations(ctx, observations)
}

// NewStore opens a store in a temp directory and seeds it with fixtures.
// The store is closed when the test ends.
func NewStore(t testing.TB, fixtures ...*Fixture) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "tablebuilder.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	for _, f := range fixtures {
		if err := f.Seed(context.Background(), s); err != nil {
			t.Fatalf("seed fixture %s: %v", f.Subject.ID, err)
		}
	}
	return s
}
