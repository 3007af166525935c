package engine

import (
	"errors"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/tablebuilder/internal/ir"
)

// resolvedQuery is a validated query with every selection checked against
// the subject and expanded for matching and estimation.
type resolvedQuery struct {
	query ir.ObservationQueryContext

	// locationIDs are the member locations to match; nil = unrestricted.
	locationIDs []string
	// locationCount is the number of location options the result can hold.
	locationCount int

	// periods are the requested periods, chronological; when timeRestricted
	// is false they are all the subject's periods and are not staged.
	// A requested range stays in periodRange until timePeriods enumerates it.
	periods        []ir.TimePeriod
	periodRange    *ir.TimePeriodRange
	periodCount    int
	timeRestricted bool

	// filterItems maps each restricted filter to its selected items.
	// filterOrder lists the restricted filters in subject order.
	filterItems map[string][]string
	filterOrder []string
	// filterCounts holds, per subject filter, the item count the result can hold.
	filterCounts []int

	// indicatorIDs are the requested indicators; nil = all.
	indicatorIDs   []string
	indicatorCount int
}

// newValidator returns a validator reporting fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateQuery performs the structural checks that need no subject.
func validateQuery(v *validator.Validate, q ir.ObservationQueryContext) error {
	if err := v.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return NewInvalidQueryError("", err.Error(), nil)
		}
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Namespace()] = fe.Tag()
		}
		return NewInvalidQueryError(verrs[0].Field(), "query failed validation", details)
	}

	tp := q.TimePeriod
	if tp == nil {
		return nil
	}
	switch {
	case tp.Range != nil && len(tp.Periods) > 0:
		return NewInvalidQueryError("time_period", "time period sets both range and periods", nil)
	case tp.Range == nil && len(tp.Periods) == 0:
		return NewInvalidQueryError("time_period", "time period needs a range or a list of periods", nil)
	case tp.Range != nil:
		if err := tp.Range.Validate(); err != nil {
			return NewInvalidQueryError("time_period", err.Error(), nil)
		}
	default:
		for _, p := range tp.Periods {
			if !p.Identifier.Valid() {
				return NewInvalidQueryError("time_period", "unknown time identifier "+string(p.Identifier), nil)
			}
		}
	}
	return nil
}

// resolveQuery checks every selected id against the subject. Unknown ids
// fail with NotFound naming the dimension and id.
func resolveQuery(subject *ir.Subject, q ir.ObservationQueryContext) (*resolvedQuery, error) {
	r := &resolvedQuery{query: q.Clone(), filterItems: make(map[string][]string)}

	// Locations: selecting any member of a duplicate group selects the group.
	options := DedupLocations(subject.Locations)
	byMember := optionIndex(options)
	if len(q.LocationIDs) == 0 {
		r.locationCount = len(options)
	} else {
		selected := make(map[string]bool)
		members := make(map[string]bool)
		for _, id := range q.LocationIDs {
			opt, ok := byMember[id]
			if !ok {
				return nil, NewNotFoundError("location", id)
			}
			selected[opt.ID] = true
			for _, m := range opt.LocationIDs {
				members[m] = true
			}
		}
		r.locationCount = len(selected)
		r.locationIDs = sortedKeys(members)
	}

	// Time periods. A range is counted here and enumerated only when needed.
	switch tp := q.TimePeriod; {
	case tp != nil && tp.Range != nil:
		if err := tp.Range.Validate(); err != nil {
			return nil, NewInvalidQueryError("time_period", err.Error(), nil)
		}
		rng := *tp.Range
		r.periodRange = &rng
		r.periodCount = rng.Len()
		r.timeRestricted = true
	case tp != nil:
		r.periods = ir.SortTimePeriods(tp.Periods)
		r.periodCount = len(r.periods)
		r.timeRestricted = true
	default:
		r.periods = slices.Clone(subject.TimePeriods)
		r.periodCount = len(r.periods)
	}

	// Filter items, grouped per filter.
	index := subject.IndexFilterItems()
	seenItems := make(map[string]bool)
	for _, id := range q.FilterItemIDs {
		ref, ok := index[id]
		if !ok {
			return nil, NewNotFoundError("filter_item", id)
		}
		if seenItems[id] {
			continue
		}
		seenItems[id] = true
		r.filterItems[ref.FilterID] = append(r.filterItems[ref.FilterID], id)
	}
	itemCounts := subject.FilterItemCount()
	for _, f := range subject.Filters {
		if items, ok := r.filterItems[f.ID]; ok {
			r.filterOrder = append(r.filterOrder, f.ID)
			r.filterCounts = append(r.filterCounts, len(items))
			continue
		}
		r.filterCounts = append(r.filterCounts, itemCounts[f.ID])
	}

	// Indicators.
	indicators := subject.IndicatorByID()
	if len(q.IndicatorIDs) == 0 {
		r.indicatorCount = len(indicators)
	} else {
		seen := make(map[string]bool)
		for _, id := range q.IndicatorIDs {
			if _, ok := indicators[id]; !ok {
				return nil, NewNotFoundError("indicator", id)
			}
			if !seen[id] {
				seen[id] = true
				r.indicatorIDs = append(r.indicatorIDs, id)
			}
		}
		r.indicatorCount = len(r.indicatorIDs)
	}

	return r, nil
}

// timePeriods returns the requested periods, enumerating a range on first use.
func (r *resolvedQuery) timePeriods() []ir.TimePeriod {
	if r.periodRange != nil {
		r.periods = r.periodRange.Expand()
		r.periodRange = nil
	}
	return r.periods
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
