package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	for _, name := range []string{"full_absence", "cropped_absence", "primary_2020"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestScenarios_Errors(t *testing.T) {
	tests := []struct {
		file string
		code string
	}{
		{"too_large.yaml", "QUERY_TOO_LARGE"},
		{"unknown_location.yaml", "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", tt.file))
			require.NoError(t, err)

			result, err := Run(context.Background(), scenario)
			require.NoError(t, err)

			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Equal(t, tt.code, string(result.ErrorCode))
			assert.Empty(t, result.CSV)
			assert.Nil(t, result.Summary)
		})
	}
}

func TestRun_FailingAssertions(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_expectations
description: Every assertion is wrong
fixture: absence
query:
  subject_id: absence
  location_ids: [eng]
assertions:
  - type: row_count
    count: 4
  - type: row_order
    observations: [o02, o01]
  - type: row_contains
    location: eng
    period: 2018_AY
    measures: {sess_possible: "999"}
  - type: crop
    cropped: true
  - type: error
    code: NOT_FOUND
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "Expected: 4 rows")
	assert.Contains(t, result.Errors[0], "Actual: 5 rows")
	assert.Contains(t, result.Errors[1], "o02 (pos 2) should be before o01 (pos 1)")
	assert.Contains(t, result.Errors[2], `sess_possible="1000"`)
	assert.Contains(t, result.Errors[3], "cropped=false")
	assert.Contains(t, result.Errors[4], "query succeeded")
}

func TestRun_FailedQueryFailsRowAssertions(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: missing_subject
description: Row assertions cannot hold when the query fails
fixture: absence
query:
  subject_id: nope
assertions:
  - type: row_count
    count: 0
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "query failed with NOT_FOUND")
}

func TestRun_FixtureFile(t *testing.T) {
	dir := t.TempDir()
	fixture := `
subject:
  id: tiny
  name: Tiny subject
  filters:
    - id: phase
      label: Phase
      name: phase
      groups:
        - id: phase-default
          label: Default
          items:
            - {id: all, label: Total}
  indicator_groups:
    - id: g
      label: Counts
      indicators:
        - {id: pupils, label: Pupils, name: pupils}
locations:
  - {id: eng, level: country, code: E92000001, name: England}
observations:
  - {id: t1, location: eng, period: 2021_CY, items: [all], measures: {pupils: "7"}}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiny.yaml"), []byte(fixture), 0o644))
	scenarioPath := filepath.Join(dir, "tiny_scenario.yaml")
	require.NoError(t, os.WriteFile(scenarioPath, []byte(`
name: tiny
description: Fixture paths resolve next to the scenario
fixture: tiny.yaml
query:
  subject_id: tiny
assertions:
  - type: row_count
    count: 1
`), 0o644))

	scenario, err := LoadScenario(scenarioPath)
	require.NoError(t, err)
	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "time_period,time_identifier,geographic_level,location_code,location_name,phase,pupils\n"+
		"2021,CY,country,E92000001,England,Total,7\n", string(result.CSV))
}

func TestRun_InvalidQuery(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: bad_query
description: Queries are checked against the query schema
fixture: absence
query:
  subject_id: absence
  colour: red
assertions:
  - type: row_count
    count: 0
`))
	require.NoError(t, err)

	_, err = Run(context.Background(), scenario)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile query")
}

func TestGoldenHelpers(t *testing.T) {
	dir := t.TempDir()
	scenarioFile := filepath.Join(dir, "scenarios", "x.yaml")
	path := GoldenPath(scenarioFile)
	assert.Equal(t, filepath.Join(dir, "scenarios", "golden", "x.csv"), path)

	_, err := CompareGolden(&Result{CSV: []byte("a\n")}, path)
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, UpdateGolden(&Result{CSV: []byte("a\n")}, path))

	match, err := CompareGolden(&Result{CSV: []byte("a\n")}, path)
	require.NoError(t, err)
	assert.True(t, match)

	match, err = CompareGolden(&Result{CSV: []byte("b\n")}, path)
	require.NoError(t, err)
	assert.False(t, match)
}
