package ir

import "strings"

// TotalLabel is the label of the group or item that aggregates its siblings.
const TotalLabel = "Total"

// IsTotal reports whether label follows the Total convention.
func IsTotal(label string) bool {
	return strings.EqualFold(strings.TrimSpace(label), TotalLabel)
}

// Subject is a queryable fact table with its dimension metadata.
// A Subject is immutable for the lifetime of a query.
type Subject struct {
	ID                string                        `json:"id"`
	Name              string                        `json:"name"`
	Filters           []Filter                      `json:"filters"`
	IndicatorGroups   []IndicatorGroup              `json:"indicator_groups"`
	Locations         []Location                    `json:"locations"`
	TimePeriods       []TimePeriod                  `json:"time_periods"`
	FilterSequence    []FilterSequenceEntry         `json:"filter_sequence,omitempty"`
	IndicatorSequence []IndicatorGroupSequenceEntry `json:"indicator_sequence,omitempty"`
}

// Filter is a named categorical dimension, e.g. "Gender".
type Filter struct {
	ID     string        `json:"id"`
	Label  string        `json:"label"`
	Hint   string        `json:"hint,omitempty"`
	Name   string        `json:"name"` // column name in exports
	Groups []FilterGroup `json:"groups"`
}

// FilterGroup is a named subgroup of a Filter.
type FilterGroup struct {
	ID       string       `json:"id"`
	FilterID string       `json:"filter_id"`
	Label    string       `json:"label"`
	Items    []FilterItem `json:"items"`
}

// FilterItem is a selectable leaf value of a Filter.
type FilterItem struct {
	ID            string `json:"id"`
	FilterGroupID string `json:"filter_group_id"`
	Label         string `json:"label"`
}

// IndicatorGroup groups measured quantities.
type IndicatorGroup struct {
	ID         string      `json:"id"`
	Label      string      `json:"label"`
	Indicators []Indicator `json:"indicators"`
}

// Indicator is a measured quantity, e.g. "Attendance rate".
type Indicator struct {
	ID               string `json:"id"`
	IndicatorGroupID string `json:"indicator_group_id"`
	Label            string `json:"label"`
	Name             string `json:"name"` // column name in exports
	Unit             string `json:"unit,omitempty"`
	DecimalPlaces    *int   `json:"decimal_places,omitempty"`
}

// Location is a geographic entity. ParentID optionally links it to a
// location at a coarser level (e.g. a local authority inside a region).
type Location struct {
	ID              string          `json:"id"`
	GeographicLevel GeographicLevel `json:"geographic_level"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	ParentID        string          `json:"parent_id,omitempty"`
}

// LocationKey is the true identity of a Location.
type LocationKey struct {
	Level GeographicLevel
	Code  string
}

// Key returns the (level, code) identity of the location.
func (l Location) Key() LocationKey {
	return LocationKey{Level: l.GeographicLevel, Code: l.Code}
}

// FilterSequenceEntry is an explicit ordering of a Filter and its children.
type FilterSequenceEntry struct {
	ID     string                     `json:"id" yaml:"id"`
	Groups []FilterGroupSequenceEntry `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// FilterGroupSequenceEntry orders the items of one FilterGroup.
type FilterGroupSequenceEntry struct {
	ID    string   `json:"id" yaml:"id"`
	Items []string `json:"items,omitempty" yaml:"items,omitempty"`
}

// IndicatorGroupSequenceEntry orders the indicators of one IndicatorGroup.
type IndicatorGroupSequenceEntry struct {
	ID         string   `json:"id" yaml:"id"`
	Indicators []string `json:"indicators,omitempty" yaml:"indicators,omitempty"`
}

// Observation is one fact row.
type Observation struct {
	ID            string            `json:"id"`
	SubjectID     string            `json:"subject_id"`
	LocationID    string            `json:"location_id"`
	TimePeriod    TimePeriod        `json:"time_period"`
	FilterItemIDs []string          `json:"filter_item_ids"`
	Measures      map[string]string `json:"measures"`
}

// FilterItemRef pairs a filter item with the filter it belongs to.
type FilterItemRef struct {
	FilterID     string
	FilterItemID string
}

// FilterItemIndex resolves filter items to their owning filter and group.
type FilterItemIndex map[string]FilterItemRef

// IndexFilterItems builds a lookup of every filter item in the subject.
func (s *Subject) IndexFilterItems() FilterItemIndex {
	idx := make(FilterItemIndex)
	for _, f := range s.Filters {
		for _, g := range f.Groups {
			for _, item := range g.Items {
				idx[item.ID] = FilterItemRef{FilterID: f.ID, FilterItemID: item.ID}
			}
		}
	}
	return idx
}

// IndicatorByID returns every indicator keyed by id.
func (s *Subject) IndicatorByID() map[string]Indicator {
	out := make(map[string]Indicator)
	for _, g := range s.IndicatorGroups {
		for _, ind := range g.Indicators {
			out[ind.ID] = ind
		}
	}
	return out
}

// LocationByID returns every location keyed by id.
func (s *Subject) LocationByID() map[string]Location {
	out := make(map[string]Location, len(s.Locations))
	for _, l := range s.Locations {
		out[l.ID] = l
	}
	return out
}

// FilterItemCount returns the number of items owned by each filter.
func (s *Subject) FilterItemCount() map[string]int {
	out := make(map[string]int, len(s.Filters))
	for _, f := range s.Filters {
		n := 0
		for _, g := range f.Groups {
			n += len(g.Items)
		}
		out[f.ID] = n
	}
	return out
}
