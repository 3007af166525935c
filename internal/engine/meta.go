package engine

import (
	"slices"

	"github.com/roach88/tablebuilder/internal/ir"
	"github.com/roach88/tablebuilder/internal/store"
)

// SubjectMeta describes everything a caller can select from a subject.
type SubjectMeta struct {
	SubjectID   string               `json:"subject_id"`
	SubjectName string               `json:"subject_name"`
	Filters     []FilterMeta         `json:"filters"`
	Indicators  []IndicatorGroupMeta `json:"indicators"`
	Locations   []LocationLevelMeta  `json:"locations"`
	TimePeriods TimePeriodsMeta      `json:"time_periods"`
}

// ResultMeta describes the dimension values present in a query result.
type ResultMeta struct {
	SubjectName string              `json:"subject_name"`
	Filters     []FilterMeta        `json:"filters"`
	Indicators  []IndicatorMeta     `json:"indicators"`
	Locations   []LocationLevelMeta `json:"locations"`
	TimePeriods TimePeriodsMeta     `json:"time_periods"`
}

// FilterMeta is a filter with its groups and items in display order.
// TotalItemID is the id of the item aggregating all others, if any.
type FilterMeta struct {
	ID          string            `json:"id"`
	Label       string            `json:"label"`
	Hint        string            `json:"hint,omitempty"`
	Name        string            `json:"name"`
	TotalItemID string            `json:"total_item_id,omitempty"`
	Groups      []FilterGroupMeta `json:"groups"`
}

type FilterGroupMeta struct {
	ID    string           `json:"id"`
	Label string           `json:"label"`
	Items []FilterItemMeta `json:"items"`
}

type FilterItemMeta struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type IndicatorGroupMeta struct {
	ID         string          `json:"id"`
	Label      string          `json:"label"`
	Indicators []IndicatorMeta `json:"indicators"`
}

type IndicatorMeta struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	Name          string `json:"name"`
	Unit          string `json:"unit,omitempty"`
	DecimalPlaces *int   `json:"decimal_places,omitempty"`
}

// LocationLevelMeta lists the location options of one geographic level.
type LocationLevelMeta struct {
	Level   ir.GeographicLevel   `json:"level"`
	Label   string               `json:"label"`
	Options []LocationOptionMeta `json:"options"`
}

// LocationOptionMeta is a selectable location option. When options of a
// level have parents that are themselves present, they are nested under
// an entry for the parent and only the children are selectable.
type LocationOptionMeta struct {
	ID              string               `json:"id"`
	Label           string               `json:"label"`
	Code            string               `json:"code,omitempty"`
	GeographicLevel ir.GeographicLevel   `json:"geographic_level"`
	LocationIDs     []string             `json:"location_ids,omitempty"`
	Options         []LocationOptionMeta `json:"options,omitempty"`
}

// TimePeriodsMeta lists time periods chronologically, with their range.
type TimePeriodsMeta struct {
	Options []TimePeriodMeta    `json:"options"`
	Range   *ir.TimePeriodRange `json:"range,omitempty"`
}

type TimePeriodMeta struct {
	Year  int               `json:"year"`
	Code  ir.TimeIdentifier `json:"code"`
	Label string            `json:"label"`
}

// BuildSubjectMeta assembles the selectable metadata of a subject.
func BuildSubjectMeta(subject *ir.Subject) *SubjectMeta {
	return &SubjectMeta{
		SubjectID:   subject.ID,
		SubjectName: subject.Name,
		Filters:     filterMeta(subject, nil),
		Indicators:  indicatorGroupMeta(subject, nil),
		Locations:   locationMeta(DedupLocations(subject.Locations)),
		TimePeriods: timePeriodMeta(subject.TimePeriods),
	}
}

// BuildResultMeta restricts the subject metadata to the footprint of a
// result: the filter items, locations and time periods that occur in it,
// and the requested indicators (all when empty).
func BuildResultMeta(subject *ir.Subject, fp store.Footprint, indicatorIDs []string, locations []LocationOption) *ResultMeta {
	items := make(map[string]bool, len(fp.FilterItemIDs))
	for _, id := range fp.FilterItemIDs {
		items[id] = true
	}

	var wanted map[string]bool
	if len(indicatorIDs) > 0 {
		wanted = make(map[string]bool, len(indicatorIDs))
		for _, id := range indicatorIDs {
			wanted[id] = true
		}
	}
	var indicators []IndicatorMeta
	for _, g := range indicatorGroupMeta(subject, wanted) {
		indicators = append(indicators, g.Indicators...)
	}

	present := make(map[string]bool, len(fp.LocationIDs))
	for _, id := range fp.LocationIDs {
		present[id] = true
	}
	var options []LocationOption
	for _, o := range locations {
		if slices.ContainsFunc(o.LocationIDs, func(id string) bool { return present[id] }) {
			options = append(options, o)
		}
	}

	return &ResultMeta{
		SubjectName: subject.Name,
		Filters:     filterMeta(subject, items),
		Indicators:  nonNil(indicators),
		Locations:   locationMeta(options),
		TimePeriods: timePeriodMeta(fp.TimePeriods),
	}
}

// filterMeta orders filters, groups and items. When keep is non-nil only
// the items it contains are listed, and empty groups and filters dropped.
func filterMeta(subject *ir.Subject, keep map[string]bool) []FilterMeta {
	seq := make(map[string]ir.FilterSequenceEntry, len(subject.FilterSequence))
	var filterSeq []string
	for _, e := range subject.FilterSequence {
		seq[e.ID] = e
		filterSeq = append(filterSeq, e.ID)
	}

	filters := Order(subject.Filters, OrderOptions[ir.Filter, string]{
		Label:    func(f ir.Filter) string { return f.Label },
		ID:       func(f ir.Filter) string { return f.ID },
		Sequence: filterSeq,
	})

	out := []FilterMeta{}
	for _, f := range filters {
		entry := seq[f.ID]
		groupItems := make(map[string][]string, len(entry.Groups))
		var groupSeq []string
		for _, g := range entry.Groups {
			groupSeq = append(groupSeq, g.ID)
			groupItems[g.ID] = g.Items
		}

		groups := Order(f.Groups, OrderOptions[ir.FilterGroup, string]{
			Label:      func(g ir.FilterGroup) string { return g.Label },
			ID:         func(g ir.FilterGroup) string { return g.ID },
			Sequence:   groupSeq,
			Prioritize: totalFirst(func(g ir.FilterGroup) string { return g.Label }),
		})

		fm := FilterMeta{ID: f.ID, Label: f.Label, Hint: f.Hint, Name: f.Name, TotalItemID: totalItemID(f)}
		for _, g := range groups {
			items := Order(g.Items, OrderOptions[ir.FilterItem, string]{
				Label:      func(i ir.FilterItem) string { return i.Label },
				ID:         func(i ir.FilterItem) string { return i.ID },
				Sequence:   groupItems[g.ID],
				Prioritize: totalFirst(func(i ir.FilterItem) string { return i.Label }),
			})
			gm := FilterGroupMeta{ID: g.ID, Label: g.Label, Items: []FilterItemMeta{}}
			for _, item := range items {
				if keep == nil || keep[item.ID] {
					gm.Items = append(gm.Items, FilterItemMeta{ID: item.ID, Label: item.Label})
				}
			}
			if keep == nil || len(gm.Items) > 0 {
				fm.Groups = append(fm.Groups, gm)
			}
		}
		if keep != nil && len(fm.Groups) == 0 {
			continue
		}
		fm.Groups = nonNil(fm.Groups)
		out = append(out, fm)
	}
	return out
}

// totalItemID finds the item labelled Total inside the group labelled
// Total, or inside the only group when the filter has just one.
func totalItemID(f ir.Filter) string {
	for _, g := range f.Groups {
		if len(f.Groups) > 1 && !ir.IsTotal(g.Label) {
			continue
		}
		for _, item := range g.Items {
			if ir.IsTotal(item.Label) {
				return item.ID
			}
		}
	}
	return ""
}

// indicatorGroupMeta orders indicator groups and indicators. When keep is
// non-nil only the indicators it contains are listed.
func indicatorGroupMeta(subject *ir.Subject, keep map[string]bool) []IndicatorGroupMeta {
	groupIndicators := make(map[string][]string, len(subject.IndicatorSequence))
	var groupSeq []string
	for _, e := range subject.IndicatorSequence {
		groupSeq = append(groupSeq, e.ID)
		groupIndicators[e.ID] = e.Indicators
	}

	groups := Order(subject.IndicatorGroups, OrderOptions[ir.IndicatorGroup, string]{
		Label:    func(g ir.IndicatorGroup) string { return g.Label },
		ID:       func(g ir.IndicatorGroup) string { return g.ID },
		Sequence: groupSeq,
	})

	out := []IndicatorGroupMeta{}
	for _, g := range groups {
		indicators := Order(g.Indicators, OrderOptions[ir.Indicator, string]{
			Label:    func(i ir.Indicator) string { return i.Label },
			ID:       func(i ir.Indicator) string { return i.ID },
			Sequence: groupIndicators[g.ID],
		})
		gm := IndicatorGroupMeta{ID: g.ID, Label: g.Label, Indicators: []IndicatorMeta{}}
		for _, ind := range indicators {
			if keep != nil && !keep[ind.ID] {
				continue
			}
			gm.Indicators = append(gm.Indicators, IndicatorMeta{
				ID:            ind.ID,
				Label:         ind.Label,
				Name:          ind.Name,
				Unit:          ind.Unit,
				DecimalPlaces: ind.DecimalPlaces,
			})
		}
		if keep != nil && len(gm.Indicators) == 0 {
			continue
		}
		out = append(out, gm)
	}
	return out
}

// locationMeta groups options per level, coarsest level first. Options
// whose parent location is among the options are nested under an entry
// for that parent.
func locationMeta(options []LocationOption) []LocationLevelMeta {
	byMember := optionIndex(options)
	byLevel := make(map[ir.GeographicLevel][]LocationOption)
	var levels []ir.GeographicLevel
	for _, o := range options {
		if _, ok := byLevel[o.GeographicLevel]; !ok {
			levels = append(levels, o.GeographicLevel)
		}
		byLevel[o.GeographicLevel] = append(byLevel[o.GeographicLevel], o)
	}
	slices.SortFunc(levels, ir.CompareLevels)

	out := []LocationLevelMeta{}
	for _, level := range levels {
		var top []LocationOptionMeta
		children := make(map[string][]LocationOption)
		var parents []*LocationOption

		for _, o := range orderOptions(byLevel[level]) {
			parent := byMember[o.ParentID]
			if o.ParentID == "" || parent == nil || parent.GeographicLevel == level {
				top = append(top, optionMeta(o))
				continue
			}
			if _, ok := children[parent.ID]; !ok {
				parents = append(parents, parent)
			}
			children[parent.ID] = append(children[parent.ID], o)
		}

		for _, p := range parents {
			entry := LocationOptionMeta{ID: p.ID, Label: p.Label, Code: p.Code, GeographicLevel: p.GeographicLevel}
			for _, c := range children[p.ID] {
				entry.Options = append(entry.Options, optionMeta(c))
			}
			top = append(top, entry)
		}
		top = Order(top, OrderOptions[LocationOptionMeta, string]{
			Label: func(o LocationOptionMeta) string { return o.Label },
		})

		out = append(out, LocationLevelMeta{Level: level, Label: level.Label(), Options: top})
	}
	return out
}

func orderOptions(options []LocationOption) []LocationOption {
	return Order(options, OrderOptions[LocationOption, string]{
		Label: func(o LocationOption) string { return o.Label },
	})
}

func optionMeta(o LocationOption) LocationOptionMeta {
	return LocationOptionMeta{
		ID:              o.ID,
		Label:           o.Label,
		Code:            o.Code,
		GeographicLevel: o.GeographicLevel,
		LocationIDs:     o.LocationIDs,
	}
}

func timePeriodMeta(periods []ir.TimePeriod) TimePeriodsMeta {
	sorted := ir.SortTimePeriods(periods)
	out := TimePeriodsMeta{Options: make([]TimePeriodMeta, 0, len(sorted))}
	for _, p := range sorted {
		out.Options = append(out.Options, TimePeriodMeta{Year: p.Year, Code: p.Identifier, Label: p.Label()})
	}
	if len(sorted) > 0 {
		out.Range = &ir.TimePeriodRange{Start: sorted[0], End: sorted[len(sorted)-1]}
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
