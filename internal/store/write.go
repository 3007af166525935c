package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/tablebuilder/internal/ir"
)

// WriteSubject inserts a subject with its filters, indicators and locations
// in one transaction. Slice order becomes the stored position.
//
// Locations use ON CONFLICT(id) DO NOTHING since they are shared between
// subjects. Everything else fails on duplicate ids.
func (s *Store) WriteSubject(ctx context.Context, subj ir.Subject) error {
	filterSeq, err := marshalSequence(nonNil(subj.FilterSequence))
	if err != nil {
		return fmt.Errorf("write subject: %w", err)
	}
	indicatorSeq, err := marshalSequence(nonNil(subj.IndicatorSequence))
	if err != nil {
		return fmt.Errorf("write subject: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO subjects (id, name, filter_sequence, indicator_sequence)
			VALUES (?, ?, ?, ?)
		`, subj.ID, subj.Name, filterSeq, indicatorSeq); err != nil {
			return fmt.Errorf("write subject: %w", err)
		}

		for fi, f := range subj.Filters {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO filters (id, subject_id, label, hint, name, position)
				VALUES (?, ?, ?, ?, ?, ?)
			`, f.ID, subj.ID, f.Label, f.Hint, f.Name, fi); err != nil {
				return fmt.Errorf("write filter %s: %w", f.ID, err)
			}
			for gi, g := range f.Groups {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO filter_groups (id, filter_id, label, position)
					VALUES (?, ?, ?, ?)
				`, g.ID, f.ID, g.Label, gi); err != nil {
					return fmt.Errorf("write filter group %s: %w", g.ID, err)
				}
				for ii, item := range g.Items {
					if _, err := tx.ExecContext(ctx, `
						INSERT INTO filter_items (id, filter_group_id, label, position)
						VALUES (?, ?, ?, ?)
					`, item.ID, g.ID, item.Label, ii); err != nil {
						return fmt.Errorf("write filter item %s: %w", item.ID, err)
					}
				}
			}
		}

		for gi, g := range subj.IndicatorGroups {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO indicator_groups (id, subject_id, label, position)
				VALUES (?, ?, ?, ?)
			`, g.ID, subj.ID, g.Label, gi); err != nil {
				return fmt.Errorf("write indicator group %s: %w", g.ID, err)
			}
			for ii, ind := range g.Indicators {
				var places sql.NullInt64
				if ind.DecimalPlaces != nil {
					places = sql.NullInt64{Int64: int64(*ind.DecimalPlaces), Valid: true}
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO indicators (id, indicator_group_id, label, name, unit, decimal_places, position)
					VALUES (?, ?, ?, ?, ?, ?, ?)
				`, ind.ID, g.ID, ind.Label, ind.Name, ind.Unit, places, ii); err != nil {
					return fmt.Errorf("write indicator %s: %w", ind.ID, err)
				}
			}
		}

		return writeLocations(ctx, tx, subj.Locations)
	})
}

// WriteLocations inserts shared locations. Duplicate ids are ignored.
func (s *Store) WriteLocations(ctx context.Context, locations []ir.Location) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return writeLocations(ctx, tx, locations)
	})
}

func writeLocations(ctx context.Context, tx *sql.Tx, locations []ir.Location) error {
	for _, l := range locations {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO locations (id, geographic_level, code, name, parent_id)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, l.ID, string(l.GeographicLevel), l.Code, l.Name, l.ParentID); err != nil {
			return fmt.Errorf("write location %s: %w", l.ID, err)
		}
	}
	return nil
}

// WriteObservations inserts observations and their filter coordinates in
// one transaction. Every filter item must already exist.
func (s *Store) WriteObservations(ctx context.Context, observations []ir.Observation) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		obsStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO observations
			(id, subject_id, location_id, year, time_identifier, filter_item_ids, measures)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare observation insert: %w", err)
		}
		defer obsStmt.Close()

		itemStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO observation_filter_items (observation_id, filter_item_id, filter_id)
			SELECT ?, fi.id, fg.filter_id
			FROM filter_items fi
			JOIN filter_groups fg ON fg.id = fi.filter_group_id
			WHERE fi.id = ?
		`)
		if err != nil {
			return fmt.Errorf("prepare filter item insert: %w", err)
		}
		defer itemStmt.Close()

		for _, o := range observations {
			ids, err := marshalIDs(o.FilterItemIDs)
			if err != nil {
				return fmt.Errorf("write observation %s: %w", o.ID, err)
			}
			measures, err := marshalMeasures(o.Measures)
			if err != nil {
				return fmt.Errorf("write observation %s: %w", o.ID, err)
			}
			if _, err := obsStmt.ExecContext(ctx,
				o.ID, o.SubjectID, o.LocationID, o.TimePeriod.Year, string(o.TimePeriod.Identifier), ids, measures,
			); err != nil {
				return fmt.Errorf("write observation %s: %w", o.ID, err)
			}

			for _, itemID := range o.FilterItemIDs {
				res, err := itemStmt.ExecContext(ctx, o.ID, itemID)
				if err != nil {
					return fmt.Errorf("write observation %s filter item %s: %w", o.ID, itemID, err)
				}
				if n, err := res.RowsAffected(); err == nil && n == 0 {
					return fmt.Errorf("write observation %s: unknown filter item %s", o.ID, itemID)
				}
			}
		}
		return nil
	})
}

// inTx runs fn in a transaction, committing on nil and rolling back otherwise.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
