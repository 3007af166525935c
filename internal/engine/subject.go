package engine

import (
	"context"
	"database/sql"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/tablebuilder/internal/ir"
)

// SubjectReader reads subject metadata. *store.Store implements it.
type SubjectReader interface {
	ReadSubjectHeader(ctx context.Context, id string) (ir.Subject, error)
	ReadFilters(ctx context.Context, subjectID string) ([]ir.Filter, error)
	ReadIndicatorGroups(ctx context.Context, subjectID string) ([]ir.IndicatorGroup, error)
	ReadLocations(ctx context.Context, subjectID string) ([]ir.Location, error)
	ReadTimePeriods(ctx context.Context, subjectID string) ([]ir.TimePeriod, error)
}

// LoadSubject reads a subject and its four dimension lists. The lists are
// read in parallel. An unknown subject fails with NotFound.
func LoadSubject(ctx context.Context, r SubjectReader, id string) (*ir.Subject, error) {
	subject, err := r.ReadSubjectHeader(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError("subject", id)
	}
	if err != nil {
		return nil, storeError("load subject", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		subject.Filters, err = r.ReadFilters(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		subject.IndicatorGroups, err = r.ReadIndicatorGroups(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		subject.Locations, err = r.ReadLocations(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		subject.TimePeriods, err = r.ReadTimePeriods(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, storeError("load subject", err)
	}
	return &subject, nil
}
