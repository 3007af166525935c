package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tablebuilder/internal/compiler"
	"github.com/roach88/tablebuilder/internal/ir"
	"github.com/roach88/tablebuilder/internal/testutil"
)

// BuiltinAbsence names the embedded pupil absence fixture.
const BuiltinAbsence = "absence"

// Scenario runs one query against one fixture and checks the result.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixture is "absence" for the built-in fixture, or a path to a fixture
	// file relative to the scenario file.
	Fixture string `yaml:"fixture"`

	// MaxTableCells overrides the engine's cell budget when positive.
	MaxTableCells int `yaml:"max_table_cells,omitempty"`

	// Query is the query document, in the same shape as a query file.
	Query yaml.Node `yaml:"query"`

	// Assertions validate the result.
	Assertions []Assertion `yaml:"assertions"`

	// baseDir resolves a relative Fixture path.
	baseDir string
}

// Assertion checks one property of a scenario result.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Count is the expected row count (row_count).
	Count int `yaml:"count,omitempty"`

	// Location, Period and Items select a row (row_contains). Items must
	// all be present on the row; Measures is a subset match.
	Location string            `yaml:"location,omitempty"`
	Period   string            `yaml:"period,omitempty"`
	Items    []string          `yaml:"items,omitempty"`
	Measures map[string]string `yaml:"measures,omitempty"`

	// Observations is the expected order of observation ids (row_order).
	// Other rows may appear in between.
	Observations []string `yaml:"observations,omitempty"`

	// Cropped and Periods describe the expected crop (crop).
	Cropped *bool    `yaml:"cropped,omitempty"`
	Periods []string `yaml:"periods,omitempty"`

	// Code is the expected error code (error).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertRowCount    = "row_count"
	AssertRowContains = "row_contains"
	AssertRowOrder    = "row_order"
	AssertCrop        = "crop"
	AssertError       = "error"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	s.baseDir = filepath.Dir(path)
	return s, nil
}

// ParseScenario parses a scenario document. A relative fixture path is
// resolved against the working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// CompileQuery compiles the scenario's query document.
func (s *Scenario) CompileQuery() (ir.ObservationQueryContext, error) {
	data, err := yaml.Marshal(&s.Query)
	if err != nil {
		return ir.ObservationQueryContext{}, fmt.Errorf("encode query: %w", err)
	}
	return compiler.CompileQuery(data, compiler.FormatYAML, s.Name)
}

// LoadFixture returns the scenario's fixture.
func (s *Scenario) LoadFixture() (*testutil.Fixture, error) {
	if s.Fixture == BuiltinAbsence {
		return testutil.AbsenceFixture(), nil
	}
	path := s.Fixture
	if !filepath.IsAbs(path) && s.baseDir != "" {
		path = filepath.Join(s.baseDir, path)
	}
	return testutil.LoadFixture(path)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Fixture == "" {
		return fmt.Errorf("fixture is required")
	}
	if s.Query.Kind == 0 {
		return fmt.Errorf("query is required")
	}
	if s.MaxTableCells < 0 {
		return fmt.Errorf("max_table_cells must be non-negative")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertRowContains:
		if a.Location == "" || a.Period == "" {
			return fmt.Errorf("assertions[%d]: location and period are required for row_contains", index)
		}
		if _, err := ir.ParseTimePeriod(a.Period); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertRowOrder:
		if len(a.Observations) == 0 {
			return fmt.Errorf("assertions[%d]: observations list is required for row_order", index)
		}
	case AssertCrop:
		if a.Cropped == nil {
			return fmt.Errorf("assertions[%d]: cropped is required for crop", index)
		}
		for _, p := range a.Periods {
			if _, err := ir.ParseTimePeriod(p); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
