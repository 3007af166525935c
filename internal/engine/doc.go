// Package engine answers table-builder queries over a subject.
//
// A query selects filter items, locations, time periods and indicators of
// one subject. The engine validates it, resolves every id against the
// subject, estimates the worst-case number of cells and crops the time
// dimension when the estimate is over budget. It then stages the
// selections into scratch tables on a dedicated connection, materializes
// the matching observation ids once, and reads both the result meta and
// the result rows from that set.
//
// Locations sharing a geographic level and code are presented as one
// option. Their observations are combined into one row per time period
// and filter combination (see MergeStrategy).
//
// Display order of filters, indicators and locations comes from Order: an
// explicit sequence when the subject has one, otherwise natural label
// order with Total first.
package engine
