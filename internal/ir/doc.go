// Package ir provides the in-memory model of a statistical Subject and the
// declarative queries run against it.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Location identity is (GeographicLevel, Code); Name is display text only
//   - Time periods order by (Year, identifier rank), never by label
//   - Measures are stored as strings exactly as published ("10", "c", "x")
//   - All JSON tags use snake_case
package ir
