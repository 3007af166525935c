// Package harness runs query scenarios against fixtures.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: hartlepool_merged
//	description: "Duplicate Hartlepool locations merge into one row"
//	fixture: absence            # built-in, or a fixture file path
//	max_table_cells: 150        # optional cell budget
//	query:
//	  subject_id: absence
//	  location_ids: [la1]
//	assertions:
//	  - type: row_count
//	    count: 2
//	  - type: row_contains
//	    location: la1
//	    period: 2020_AY
//	    measures: { sess_possible: "50" }
//
// # Assertion Types
//
//   - row_count: exactly N result rows
//   - row_contains: a row for a location, period and filter items, with a
//     subset of measure values
//   - row_order: observation ids appear in the given order
//   - crop: whether the query was cropped and to which periods
//   - error: the query failed with the given error code
//
// # Deterministic Testing
//
// Every scenario runs on a fresh store with a fixed request token, so the
// CSV export of a scenario is byte-identical across runs and can be kept
// as a golden file.
package harness
