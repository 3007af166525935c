package ir

// ObservationQueryContext is a caller-supplied declarative query.
// Empty FilterItemIDs, LocationIDs or IndicatorIDs mean "all"; a nil
// TimePeriod means every period the subject has.
type ObservationQueryContext struct {
	SubjectID     string           `json:"subject_id" yaml:"subject_id" validate:"required"`
	FilterItemIDs []string         `json:"filter_item_ids,omitempty" yaml:"filter_item_ids,omitempty" validate:"dive,required"`
	LocationIDs   []string         `json:"location_ids,omitempty" yaml:"location_ids,omitempty" validate:"dive,required"`
	TimePeriod    *TimePeriodQuery `json:"time_period,omitempty" yaml:"time_period,omitempty"`
	IndicatorIDs  []string         `json:"indicator_ids,omitempty" yaml:"indicator_ids,omitempty" validate:"dive,required"`
}

// TimePeriodQuery selects time periods either as an inclusive range or as
// an explicit list. Exactly one of the two must be set.
type TimePeriodQuery struct {
	Range   *TimePeriodRange `json:"range,omitempty" yaml:"range,omitempty"`
	Periods []TimePeriod     `json:"periods,omitempty" yaml:"periods,omitempty" validate:"dive"`
}

// Resolve returns the periods the query selects, chronologically ordered and
// without duplicates. ok is false when the query does not restrict time.
func (q *TimePeriodQuery) Resolve() (periods []TimePeriod, ok bool) {
	if q == nil {
		return nil, false
	}
	if q.Range != nil {
		return q.Range.Expand(), true
	}
	return SortTimePeriods(q.Periods), true
}

// SortTimePeriods returns a chronologically ordered copy of periods with
// duplicates removed.
func SortTimePeriods(periods []TimePeriod) []TimePeriod {
	out := make([]TimePeriod, 0, len(periods))
	seen := make(map[TimePeriod]bool, len(periods))
	for _, p := range periods {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sortPeriods(out)
	return out
}

// Clone returns a deep copy of the query.
func (q ObservationQueryContext) Clone() ObservationQueryContext {
	out := q
	out.FilterItemIDs = cloneStrings(q.FilterItemIDs)
	out.LocationIDs = cloneStrings(q.LocationIDs)
	out.IndicatorIDs = cloneStrings(q.IndicatorIDs)
	if q.TimePeriod != nil {
		tp := &TimePeriodQuery{}
		if q.TimePeriod.Range != nil {
			r := *q.TimePeriod.Range
			tp.Range = &r
		}
		if q.TimePeriod.Periods != nil {
			tp.Periods = append([]TimePeriod(nil), q.TimePeriod.Periods...)
		}
		out.TimePeriod = tp
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
