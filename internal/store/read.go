package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/tablebuilder/internal/ir"
)

// ReadSubjectHeader returns a subject without its dimension lists.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadSubjectHeader(ctx context.Context, id string) (ir.Subject, error) {
	query, args, err := s.sb.
		Select("id", "name", "filter_sequence", "indicator_sequence").
		From("subjects").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return ir.Subject{}, fmt.Errorf("build subject query: %w", err)
	}

	var subj ir.Subject
	var filterSeq, indicatorSeq string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&subj.ID, &subj.Name, &filterSeq, &indicatorSeq)
	if err != nil {
		return ir.Subject{}, err
	}

	if subj.FilterSequence, err = unmarshalSequence[ir.FilterSequenceEntry](filterSeq); err != nil {
		return ir.Subject{}, fmt.Errorf("subject %s: %w", id, err)
	}
	if subj.IndicatorSequence, err = unmarshalSequence[ir.IndicatorGroupSequenceEntry](indicatorSeq); err != nil {
		return ir.Subject{}, fmt.Errorf("subject %s: %w", id, err)
	}
	return subj, nil
}

// ReadFilters returns the filters of a subject with their groups and items,
// in publication order.
//
// Returns empty slice (not nil) if the subject has no filters.
func (s *Store) ReadFilters(ctx context.Context, subjectID string) ([]ir.Filter, error) {
	query, args, err := s.sb.
		Select("f.id", "f.label", "f.hint", "f.name", "g.id", "g.label", "i.id", "i.label").
		From("filters f").
		LeftJoin("filter_groups g ON g.filter_id = f.id").
		LeftJoin("filter_items i ON i.filter_group_id = g.id").
		Where(sq.Eq{"f.subject_id": subjectID}).
		OrderBy(
			"f.position ASC", "f.id COLLATE BINARY ASC",
			"g.position ASC", "g.id COLLATE BINARY ASC",
			"i.position ASC", "i.id COLLATE BINARY ASC",
		).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build filters query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query filters: %w", err)
	}
	defer rows.Close()

	filters := []ir.Filter{}
	for rows.Next() {
		var f ir.Filter
		var groupID, groupLabel, itemID, itemLabel sql.NullString
		if err := rows.Scan(&f.ID, &f.Label, &f.Hint, &f.Name, &groupID, &groupLabel, &itemID, &itemLabel); err != nil {
			return nil, fmt.Errorf("scan filter: %w", err)
		}

		if n := len(filters); n == 0 || filters[n-1].ID != f.ID {
			f.Groups = []ir.FilterGroup{}
			filters = append(filters, f)
		}
		cur := &filters[len(filters)-1]
		if !groupID.Valid {
			continue
		}
		if n := len(cur.Groups); n == 0 || cur.Groups[n-1].ID != groupID.String {
			cur.Groups = append(cur.Groups, ir.FilterGroup{
				ID:       groupID.String,
				FilterID: cur.ID,
				Label:    groupLabel.String,
				Items:    []ir.FilterItem{},
			})
		}
		if !itemID.Valid {
			continue
		}
		g := &cur.Groups[len(cur.Groups)-1]
		g.Items = append(g.Items, ir.FilterItem{ID: itemID.String, FilterGroupID: g.ID, Label: itemLabel.String})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filters: %w", err)
	}
	return filters, nil
}

// ReadIndicatorGroups returns the indicator groups of a subject with their
// indicators, in publication order.
//
// Returns empty slice (not nil) if the subject has no indicators.
func (s *Store) ReadIndicatorGroups(ctx context.Context, subjectID string) ([]ir.IndicatorGroup, error) {
	query, args, err := s.sb.
		Select("g.id", "g.label", "i.id", "i.label", "i.name", "i.unit", "i.decimal_places").
		From("indicator_groups g").
		LeftJoin("indicators i ON i.indicator_group_id = g.id").
		Where(sq.Eq{"g.subject_id": subjectID}).
		OrderBy("g.position ASC", "g.id COLLATE BINARY ASC", "i.position ASC", "i.id COLLATE BINARY ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build indicators query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query indicators: %w", err)
	}
	defer rows.Close()

	groups := []ir.IndicatorGroup{}
	for rows.Next() {
		var g ir.IndicatorGroup
		var id, label, name, unit sql.NullString
		var places sql.NullInt64
		if err := rows.Scan(&g.ID, &g.Label, &id, &label, &name, &unit, &places); err != nil {
			return nil, fmt.Errorf("scan indicator: %w", err)
		}

		if n := len(groups); n == 0 || groups[n-1].ID != g.ID {
			g.Indicators = []ir.Indicator{}
			groups = append(groups, g)
		}
		if !id.Valid {
			continue
		}
		cur := &groups[len(groups)-1]
		ind := ir.Indicator{
			ID:               id.String,
			IndicatorGroupID: cur.ID,
			Label:            label.String,
			Name:             name.String,
			Unit:             unit.String,
		}
		if places.Valid {
			dp := int(places.Int64)
			ind.DecimalPlaces = &dp
		}
		cur.Indicators = append(cur.Indicators, ind)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate indicators: %w", err)
	}
	return groups, nil
}

// ReadLocations returns every location referenced by the subject's
// observations.
//
// Returns empty slice (not nil) if the subject has no observations.
func (s *Store) ReadLocations(ctx context.Context, subjectID string) ([]ir.Location, error) {
	used := s.sb.Select("location_id").From("observations").Where(sq.Eq{"subject_id": subjectID})
	query, args, err := s.sb.
		Select("l.id", "l.geographic_level", "l.code", "l.name", "l.parent_id").
		From("locations l").
		Where(sq.Expr("l.id IN (?)", used)).
		OrderBy("l.id COLLATE BINARY ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build locations query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	locations := []ir.Location{}
	for rows.Next() {
		var l ir.Location
		if err := rows.Scan(&l.ID, &l.GeographicLevel, &l.Code, &l.Name, &l.ParentID); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locations = append(locations, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return locations, nil
}

// ReadTimePeriods returns the distinct time periods of the subject's
// observations in chronological order.
//
// Returns empty slice (not nil) if the subject has no observations.
func (s *Store) ReadTimePeriods(ctx context.Context, subjectID string) ([]ir.TimePeriod, error) {
	query, args, err := s.sb.
		Select("year", "time_identifier").
		Distinct().
		From("observations").
		Where(sq.Eq{"subject_id": subjectID}).
		OrderBy("year ASC", "time_identifier COLLATE BINARY ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build time periods query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query time periods: %w", err)
	}
	defer rows.Close()

	periods, err := scanTimePeriods(rows)
	if err != nil {
		return nil, err
	}
	return ir.SortTimePeriods(periods), nil
}

func scanTimePeriods(rows *sql.Rows) ([]ir.TimePeriod, error) {
	periods := []ir.TimePeriod{}
	for rows.Next() {
		var p ir.TimePeriod
		if err := rows.Scan(&p.Year, &p.Identifier); err != nil {
			return nil, fmt.Errorf("scan time period: %w", err)
		}
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate time periods: %w", err)
	}
	return periods, nil
}
