package engine

import (
	"math"

	"github.com/roach88/tablebuilder/internal/ir"
)

// DefaultMaxTableCells is the default cell budget of a single query.
const DefaultMaxTableCells = 25000

// EstimateMaxCells returns the worst-case number of cells a query can
// produce: indicators × locations × time periods × Π(filter item counts).
//
// The estimate assumes full cross-product coverage, so it is an upper
// bound. It saturates at math.MaxInt instead of overflowing and treats
// negative counts as zero.
func EstimateMaxCells(indicatorCount, locationCount, timePeriodCount int, filterItemCounts []int) int {
	cells := 1
	for _, n := range append([]int{indicatorCount, locationCount, timePeriodCount}, filterItemCounts...) {
		cells = saturatingMul(cells, max(n, 0))
	}
	return cells
}

func saturatingMul(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt/b {
		return math.MaxInt
	}
	return a * b
}

// CropReport tells the caller whether, and how, a query was narrowed.
type CropReport struct {
	Cropped        bool `json:"cropped"`
	EstimatedCells int  `json:"estimated_cells"`
	MaxCells       int  `json:"max_cells"`

	// OriginalTimePeriods is set only when Cropped is true.
	OriginalTimePeriods []ir.TimePeriod `json:"original_time_periods,omitempty"`
	TimePeriods         []ir.TimePeriod `json:"time_periods,omitempty"`
}

// Cropper bounds query size before execution.
type Cropper struct {
	MaxCells int
}

// Estimate returns EstimateMaxCells for q against subject.
func (c Cropper) Estimate(subject *ir.Subject, q ir.ObservationQueryContext) (int, error) {
	r, err := resolveQuery(subject, q)
	if err != nil {
		return 0, err
	}
	return r.estimate(), nil
}

// IsCroppingRequired reports whether q's estimate exceeds the budget.
func (c Cropper) IsCroppingRequired(subject *ir.Subject, q ir.ObservationQueryContext) (bool, error) {
	r, err := resolveQuery(subject, q)
	if err != nil {
		return false, err
	}
	return r.estimate() > c.MaxCells, nil
}

// CropQuery narrows q until its estimate fits the budget. Only the time
// dimension shrinks: the longest chronological prefix of the requested
// periods that fits is kept, dropping the most recent first. Locations,
// filters and indicators are never touched. If a single period is already
// over budget the query fails with QueryTooLarge.
func (c Cropper) CropQuery(subject *ir.Subject, q ir.ObservationQueryContext) (ir.ObservationQueryContext, CropReport, error) {
	r, err := resolveQuery(subject, q)
	if err != nil {
		return ir.ObservationQueryContext{}, CropReport{}, err
	}
	report, err := c.crop(r)
	if err != nil {
		return ir.ObservationQueryContext{}, report, err
	}
	return r.query, report, nil
}

// crop applies the crop policy to r in place.
func (c Cropper) crop(r *resolvedQuery) (CropReport, error) {
	estimate := r.estimate()
	report := CropReport{EstimatedCells: estimate, MaxCells: c.MaxCells}
	if estimate <= c.MaxCells {
		return report, nil
	}

	perPeriod := EstimateMaxCells(r.indicatorCount, r.locationCount, 1, r.filterCounts)
	keep := 0
	if perPeriod > 0 {
		keep = c.MaxCells / perPeriod
	}
	if keep < 1 {
		return report, NewQueryTooLargeError(perPeriod, c.MaxCells)
	}

	original := r.timePeriods()
	kept := original[:min(keep, len(original))]
	report.Cropped = true
	report.OriginalTimePeriods = original
	report.TimePeriods = kept
	report.EstimatedCells = EstimateMaxCells(r.indicatorCount, r.locationCount, len(kept), r.filterCounts)

	r.periods = kept
	r.periodCount = len(kept)
	r.timeRestricted = true
	r.query.TimePeriod = croppedTimePeriod(r.query.TimePeriod, kept)
	return report, nil
}

// croppedTimePeriod keeps the shape of the caller's time selection: a range
// stays a range, anything else becomes an explicit list.
func croppedTimePeriod(orig *ir.TimePeriodQuery, kept []ir.TimePeriod) *ir.TimePeriodQuery {
	if orig != nil && orig.Range != nil {
		return &ir.TimePeriodQuery{Range: &ir.TimePeriodRange{Start: kept[0], End: kept[len(kept)-1]}}
	}
	return &ir.TimePeriodQuery{Periods: kept}
}

func (r *resolvedQuery) estimate() int {
	return EstimateMaxCells(r.indicatorCount, r.locationCount, r.periodCount, r.filterCounts)
}
