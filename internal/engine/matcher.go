package engine

import (
	"context"
	"iter"

	"github.com/roach88/tablebuilder/internal/ir"
	"github.com/roach88/tablebuilder/internal/queryir"
	"github.com/roach88/tablebuilder/internal/store"
)

// Scratch stages selections into per-request scratch tables and
// materializes the matched observation ids.
type Scratch interface {
	StageIDs(ctx context.Context, kind string, ids []string) (queryir.Staged, error)
	StageTimePeriods(ctx context.Context, periods []ir.TimePeriod) (queryir.Staged, error)
	Materialize(ctx context.Context, src queryir.Select) (queryir.Staged, int, error)
}

// Session is the per-request view of the store the engine runs a query on.
// *store.Session implements it.
type Session interface {
	Scratch
	Footprint(ctx context.Context, matched queryir.Staged) (store.Footprint, error)
	Observations(ctx context.Context, subjectID string, matched queryir.Staged) iter.Seq2[ir.Observation, error]
	Release(ctx context.Context) error
}

var _ Session = (*store.Session)(nil)

// MatchedObservationSet is the materialized result of matching. Readers
// join against Table; the set stays valid until its session is released.
type MatchedObservationSet struct {
	SubjectID string
	Table     queryir.Staged
	Count     int
}

// Match resolves q against subject and materializes the ids of every
// observation that satisfies it.
//
// An observation matches when it belongs to the subject, its location and
// time period are selected (or the dimension is unrestricted), and for each
// filter with a selection it carries at least one selected item of that
// filter. Zero matches is a valid, empty set.
func Match(ctx context.Context, scratch Scratch, subject *ir.Subject, q ir.ObservationQueryContext) (*MatchedObservationSet, error) {
	r, err := resolveQuery(subject, q)
	if err != nil {
		return nil, err
	}
	return match(ctx, scratch, r)
}

func match(ctx context.Context, scratch Scratch, r *resolvedQuery) (*MatchedObservationSet, error) {
	preds := []queryir.Predicate{
		queryir.Equals{Field: "o.subject_id", Value: r.query.SubjectID},
	}

	if r.locationIDs != nil {
		staged, err := scratch.StageIDs(ctx, "locations", r.locationIDs)
		if err != nil {
			return nil, storeError("stage locations", err)
		}
		preds = append(preds, queryir.InStaged{Fields: []string{"o.location_id"}, Staged: staged})
	}

	if r.timeRestricted {
		staged, err := scratch.StageTimePeriods(ctx, r.timePeriods())
		if err != nil {
			return nil, storeError("stage time periods", err)
		}
		preds = append(preds, queryir.InStaged{Fields: []string{"o.year", "o.time_identifier"}, Staged: staged})
	}

	// AND across filters, OR within a filter.
	for _, filterID := range r.filterOrder {
		staged, err := scratch.StageIDs(ctx, "items", r.filterItems[filterID])
		if err != nil {
			return nil, storeError("stage filter items", err)
		}
		preds = append(preds, queryir.InQuery{
			Field: "o.id",
			Query: queryir.Select{
				From:    "observation_filter_items",
				Columns: []string{"observation_id"},
				Filter:  queryir.InStaged{Fields: []string{"filter_item_id"}, Staged: staged},
			},
		})
	}

	table, count, err := scratch.Materialize(ctx, queryir.Select{
		From:    "observations",
		Alias:   "o",
		Columns: []string{"o.id"},
		Filter:  queryir.And{Predicates: preds},
	})
	if err != nil {
		return nil, storeError("materialize matches", err)
	}
	return &MatchedObservationSet{SubjectID: r.query.SubjectID, Table: table, Count: count}, nil
}
