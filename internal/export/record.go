package export

import (
	"strconv"

	"github.com/roach88/tablebuilder/internal/engine"
	"github.com/roach88/tablebuilder/internal/ir"
)

var fixedColumns = []string{
	"time_period",
	"time_identifier",
	"geographic_level",
	"location_code",
	"location_name",
}

// records flattens result rows into string records laid out by a result
// meta: fixed columns, one column per filter, then one per indicator.
type records struct {
	header     []string
	filters    []filterColumn
	indicators []string
	locations  map[string]engine.LocationOptionMeta
	record     []string
}

type filterColumn struct {
	name  string
	items map[string]string // item id -> label
}

func newRecords(meta *engine.ResultMeta) *records {
	r := &records{
		header:    append([]string{}, fixedColumns...),
		locations: make(map[string]engine.LocationOptionMeta),
	}

	for _, f := range meta.Filters {
		col := filterColumn{name: f.Name, items: make(map[string]string)}
		for _, g := range f.Groups {
			for _, item := range g.Items {
				col.items[item.ID] = item.Label
			}
		}
		r.filters = append(r.filters, col)
		r.header = append(r.header, f.Name)
	}
	for _, ind := range meta.Indicators {
		r.indicators = append(r.indicators, ind.ID)
		r.header = append(r.header, ind.Name)
	}
	for _, level := range meta.Locations {
		indexLocations(r.locations, level.Options)
	}

	r.record = make([]string, 0, len(r.header))
	return r
}

// indexLocations maps option and member ids to their option. Nested
// options win over the parent headers that share their id.
func indexLocations(into map[string]engine.LocationOptionMeta, options []engine.LocationOptionMeta) {
	for _, o := range options {
		if len(o.Options) > 0 {
			indexLocations(into, o.Options)
		}
		if _, ok := into[o.ID]; !ok {
			into[o.ID] = o
		}
		for _, id := range o.LocationIDs {
			if _, ok := into[id]; !ok {
				into[id] = o
			}
		}
	}
}

// row returns the record of one result row. The slice is reused by the
// next call.
func (r *records) row(row ir.ResultRow) []string {
	loc := r.locations[row.LocationID]
	rec := append(r.record[:0],
		strconv.Itoa(row.TimePeriod.Year),
		string(row.TimePeriod.Identifier),
		string(row.GeographicLevel),
		loc.Code,
		loc.Label,
	)

	for _, f := range r.filters {
		label := ""
		for _, id := range row.FilterItemIDs {
			if l, ok := f.items[id]; ok {
				label = l
				break
			}
		}
		rec = append(rec, label)
	}
	for _, id := range r.indicators {
		rec = append(rec, row.Measures[id])
	}
	r.record = rec
	return rec
}
