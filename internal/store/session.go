package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/tablebuilder/internal/ir"
	"github.com/roach88/tablebuilder/internal/queryir"
	"github.com/roach88/tablebuilder/internal/querysql"
)

// stageBatchSize keeps multi-row inserts below SQLite's historical limit of
// 999 bound parameters.
const stageBatchSize = 400

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Session owns the scratch tables of one query. It pins a single pooled
// connection because TEMP tables are only visible to the connection that
// created them.
//
// A Session is not safe for concurrent use.
type Session struct {
	conn     *sql.Conn
	sb       sq.StatementBuilderType
	compiler *querysql.SQLCompiler
	prefix   string
	tables   []string
	released bool
}

// Footprint lists the distinct dimension values present in a matched set.
type Footprint struct {
	LocationIDs   []string
	TimePeriods   []ir.TimePeriod
	FilterItemIDs []string
}

// OpenSession pins a connection for a query identified by token. The token
// becomes part of every scratch table name; hyphens are stripped so a UUID
// can be passed directly.
func (s *Store) OpenSession(ctx context.Context, token string) (*Session, error) {
	clean := strings.ReplaceAll(token, "-", "")
	if !tokenPattern.MatchString(clean) {
		return nil, fmt.Errorf("open session: invalid token %q", token)
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return &Session{
		conn:     conn,
		sb:       s.sb,
		compiler: s.compiler,
		prefix:   "tb_" + clean,
	}, nil
}

// Tables returns the names of the scratch tables created so far.
func (ss *Session) Tables() []string {
	return append([]string(nil), ss.tables...)
}

func (ss *Session) createTable(ctx context.Context, kind, ddl string) (string, error) {
	if ss.released {
		return "", fmt.Errorf("session already released")
	}
	name := fmt.Sprintf("%s_%d_%s", ss.prefix, len(ss.tables), kind)
	if _, err := ss.conn.ExecContext(ctx, fmt.Sprintf("CREATE TEMP TABLE %s (%s) WITHOUT ROWID", name, ddl)); err != nil {
		return "", fmt.Errorf("create scratch table %s: %w", name, err)
	}
	ss.tables = append(ss.tables, name)
	return name, nil
}

// StageIDs copies ids into a fresh scratch table and returns a handle the
// matcher can join against. Duplicate ids are stored once.
func (ss *Session) StageIDs(ctx context.Context, kind string, ids []string) (queryir.Staged, error) {
	name, err := ss.createTable(ctx, kind, "id TEXT PRIMARY KEY")
	if err != nil {
		return queryir.Staged{}, err
	}

	for start := 0; start < len(ids); start += stageBatchSize {
		end := min(start+stageBatchSize, len(ids))
		ins := ss.sb.Insert(name).Options("OR IGNORE").Columns("id")
		for _, id := range ids[start:end] {
			ins = ins.Values(id)
		}
		if err := ss.exec(ctx, ins); err != nil {
			return queryir.Staged{}, fmt.Errorf("stage %s: %w", kind, err)
		}
	}
	return queryir.Staged{Table: name, Columns: []string{"id"}}, nil
}

// StageTimePeriods copies periods into a fresh two-column scratch table.
func (ss *Session) StageTimePeriods(ctx context.Context, periods []ir.TimePeriod) (queryir.Staged, error) {
	name, err := ss.createTable(ctx, "periods",
		"year INTEGER NOT NULL, time_identifier TEXT NOT NULL, PRIMARY KEY (year, time_identifier)")
	if err != nil {
		return queryir.Staged{}, err
	}

	for start := 0; start < len(periods); start += stageBatchSize {
		end := min(start+stageBatchSize, len(periods))
		ins := ss.sb.Insert(name).Options("OR IGNORE").Columns("year", "time_identifier")
		for _, p := range periods[start:end] {
			ins = ins.Values(p.Year, string(p.Identifier))
		}
		if err := ss.exec(ctx, ins); err != nil {
			return queryir.Staged{}, fmt.Errorf("stage time periods: %w", err)
		}
	}
	return queryir.Staged{Table: name, Columns: []string{"year", "time_identifier"}}, nil
}

func (ss *Session) exec(ctx context.Context, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = ss.conn.ExecContext(ctx, query, args...)
	return err
}

// Materialize evaluates src once and stores the selected observation ids in
// a scratch table. src must select a single id column.
func (ss *Session) Materialize(ctx context.Context, src queryir.Select) (queryir.Staged, int, error) {
	name, err := ss.createTable(ctx, "matched", "id TEXT PRIMARY KEY")
	if err != nil {
		return queryir.Staged{}, 0, err
	}

	query, args, err := ss.compiler.Compile(queryir.Materialize{
		Into:    name,
		Columns: []string{"id"},
		Source:  src,
	})
	if err != nil {
		return queryir.Staged{}, 0, fmt.Errorf("compile matcher: %w", err)
	}

	res, err := ss.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return queryir.Staged{}, 0, fmt.Errorf("materialize matches: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return queryir.Staged{}, 0, fmt.Errorf("count matches: %w", err)
	}
	return queryir.Staged{Table: name, Columns: []string{"id"}}, int(n), nil
}

// Footprint reads the distinct locations, time periods and filter items of
// the matched observations.
func (ss *Session) Footprint(ctx context.Context, matched queryir.Staged) (Footprint, error) {
	join := matched.Table + " m ON m.id = o.id"

	locations, err := ss.strings(ctx, ss.sb.
		Select("o.location_id").Distinct().
		From("observations o").Join(join).
		OrderBy("o.location_id COLLATE BINARY ASC"))
	if err != nil {
		return Footprint{}, fmt.Errorf("footprint locations: %w", err)
	}

	items, err := ss.strings(ctx, ss.sb.
		Select("ofi.filter_item_id").Distinct().
		From("observation_filter_items ofi").
		Join(matched.Table+" m ON m.id = ofi.observation_id").
		OrderBy("ofi.filter_item_id COLLATE BINARY ASC"))
	if err != nil {
		return Footprint{}, fmt.Errorf("footprint filter items: %w", err)
	}

	query, args, err := ss.sb.
		Select("o.year", "o.time_identifier").Distinct().
		From("observations o").Join(join).
		OrderBy("o.year ASC", "o.time_identifier COLLATE BINARY ASC").
		ToSql()
	if err != nil {
		return Footprint{}, fmt.Errorf("footprint time periods: %w", err)
	}
	rows, err := ss.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return Footprint{}, fmt.Errorf("query footprint time periods: %w", err)
	}
	defer rows.Close()
	periods, err := scanTimePeriods(rows)
	if err != nil {
		return Footprint{}, err
	}

	return Footprint{
		LocationIDs:   locations,
		TimePeriods:   ir.SortTimePeriods(periods),
		FilterItemIDs: items,
	}, nil
}

func (ss *Session) strings(ctx context.Context, b sq.SelectBuilder) ([]string, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := ss.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Observations streams the matched observations ordered by id. Each call
// to the returned sequence runs a fresh query, so it can be iterated more
// than once. Stopping early closes the underlying rows.
func (ss *Session) Observations(ctx context.Context, subjectID string, matched queryir.Staged) iter.Seq2[ir.Observation, error] {
	return func(yield func(ir.Observation, error) bool) {
		query, args, err := ss.sb.
			Select("o.id", "o.location_id", "o.year", "o.time_identifier", "o.filter_item_ids", "o.measures").
			From("observations o").
			Join(matched.Table + " m ON m.id = o.id").
			OrderBy("o.id COLLATE BINARY ASC").
			ToSql()
		if err != nil {
			yield(ir.Observation{}, fmt.Errorf("build observations query: %w", err))
			return
		}

		rows, err := ss.conn.QueryContext(ctx, query, args...)
		if err != nil {
			yield(ir.Observation{}, fmt.Errorf("query observations: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			o := ir.Observation{SubjectID: subjectID}
			var ids, measures string
			if err := rows.Scan(&o.ID, &o.LocationID, &o.TimePeriod.Year, &o.TimePeriod.Identifier, &ids, &measures); err != nil {
				yield(ir.Observation{}, fmt.Errorf("scan observation: %w", err))
				return
			}
			if o.FilterItemIDs, err = unmarshalIDs(ids); err != nil {
				yield(ir.Observation{}, fmt.Errorf("observation %s: %w", o.ID, err))
				return
			}
			if o.Measures, err = unmarshalMeasures(measures); err != nil {
				yield(ir.Observation{}, fmt.Errorf("observation %s: %w", o.ID, err))
				return
			}
			if !yield(o, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(ir.Observation{}, fmt.Errorf("iterate observations: %w", err))
		}
	}
}

// Release drops every scratch table and returns the connection to the pool.
// It ignores cancellation of ctx so that a cancelled query still cleans up.
// If a table cannot be dropped the connection is discarded instead of
// being returned. Release is idempotent.
func (ss *Session) Release(ctx context.Context) error {
	if ss.released {
		return nil
	}
	ss.released = true
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(ss.tables) - 1; i >= 0; i-- {
		if _, err := ss.conn.ExecContext(ctx, "DROP TABLE IF EXISTS temp."+ss.tables[i]); err != nil {
			errs = append(errs, fmt.Errorf("drop scratch table %s: %w", ss.tables[i], err))
		}
	}
	ss.tables = nil
	if len(errs) > 0 {
		_ = ss.conn.Raw(func(any) error { return driver.ErrBadConn })
		return errors.Join(errs...)
	}

	if err := ss.conn.Close(); err != nil {
		return fmt.Errorf("close session connection: %w", err)
	}
	return nil
}
