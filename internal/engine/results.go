package engine

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"strings"

	"github.com/roach88/tablebuilder/internal/ir"
	"github.com/roach88/tablebuilder/internal/queryir"
)

// ObservationReader streams the observations of a matched set.
type ObservationReader interface {
	Observations(ctx context.Context, subjectID string, matched queryir.Staged) iter.Seq2[ir.Observation, error]
}

// BuildResults shapes the matched observations into result rows.
//
// Measures are restricted to indicatorIDs (all when empty). Observations of
// a location that was merged with others under one option are combined:
// one row per (option, time period, filter items), each measure merged
// with merge across the members in label order, a missing value passed as
// "". Other observations pass through in id order; merged rows follow
// once the stream is exhausted.
//
// The sequence is lazy and restartable. Each iteration re-reads the
// matched set.
func BuildResults(
	ctx context.Context,
	reader ObservationReader,
	matched *MatchedObservationSet,
	indicatorIDs []string,
	locations []LocationOption,
	merge MergeStrategy,
) iter.Seq2[ir.ResultRow, error] {
	if merge == nil {
		merge = SumMerge
	}
	byMember := optionIndex(locations)
	var wanted map[string]bool
	if len(indicatorIDs) > 0 {
		wanted = make(map[string]bool, len(indicatorIDs))
		for _, id := range indicatorIDs {
			wanted[id] = true
		}
	}

	return func(yield func(ir.ResultRow, error) bool) {
		var groups []*mergeGroupRows
		index := make(map[string]*mergeGroupRows)

		for obs, err := range reader.Observations(ctx, matched.SubjectID, matched.Table) {
			if err != nil {
				yield(ir.ResultRow{}, err)
				return
			}
			opt := byMember[obs.LocationID]
			if opt == nil || !opt.Merged() {
				row := ir.ResultRow{
					ObservationID: obs.ID,
					LocationID:    obs.LocationID,
					TimePeriod:    obs.TimePeriod,
					FilterItemIDs: obs.FilterItemIDs,
					Measures:      selectMeasures(obs.Measures, wanted),
				}
				if opt != nil {
					row.GeographicLevel = opt.GeographicLevel
				}
				if !yield(row, nil) {
					return
				}
				continue
			}

			key := mergeKey(opt.ID, obs)
			g := index[key]
			if g == nil {
				g = &mergeGroupRows{option: opt}
				index[key] = g
				groups = append(groups, g)
			}
			g.members = append(g.members, obs)
		}

		for _, g := range groups {
			if err := ctx.Err(); err != nil {
				yield(ir.ResultRow{}, err)
				return
			}
			if !yield(g.row(wanted, merge), nil) {
				return
			}
		}
	}
}

// mergeGroupRows collects the observations combined into one merged row.
type mergeGroupRows struct {
	option  *LocationOption
	members []ir.Observation
}

func mergeKey(optionID string, obs ir.Observation) string {
	items := slices.Clone(obs.FilterItemIDs)
	slices.Sort(items)
	return optionID + "\x00" + obs.TimePeriod.String() + "\x00" + strings.Join(items, "\x00")
}

func (g *mergeGroupRows) row(wanted map[string]bool, merge MergeStrategy) ir.ResultRow {
	rank := make(map[string]int, len(g.option.LocationIDs))
	for i, id := range g.option.LocationIDs {
		rank[id] = i
	}
	members := slices.Clone(g.members)
	slices.SortStableFunc(members, func(a, b ir.Observation) int {
		return cmp.Or(cmp.Compare(rank[a.LocationID], rank[b.LocationID]), strings.Compare(a.ID, b.ID))
	})

	var keys []string
	seen := make(map[string]bool)
	for _, m := range members {
		for k := range m.Measures {
			if !seen[k] && (wanted == nil || wanted[k]) {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	slices.Sort(keys)

	measures := make(map[string]string, len(keys))
	values := make([]string, len(members))
	for _, k := range keys {
		for i, m := range members {
			values[i] = m.Measures[k]
		}
		measures[k] = merge(values)
	}

	first := members[0]
	return ir.ResultRow{
		ObservationID:   first.ID,
		LocationID:      g.option.ID,
		GeographicLevel: g.option.GeographicLevel,
		TimePeriod:      first.TimePeriod,
		FilterItemIDs:   first.FilterItemIDs,
		Measures:        measures,
	}
}

func selectMeasures(measures map[string]string, wanted map[string]bool) map[string]string {
	out := make(map[string]string, len(measures))
	for k, v := range measures {
		if wanted == nil || wanted[k] {
			out[k] = v
		}
	}
	return out
}
