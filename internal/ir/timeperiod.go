package ir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// TimeIdentifier is the period code half of a TimePeriod, e.g. "AY" or "Q3".
type TimeIdentifier string

// Annual identifiers. Each forms a family of its own.
const (
	AcademicYear  TimeIdentifier = "AY"
	CalendarYear  TimeIdentifier = "CY"
	FinancialYear TimeIdentifier = "FY"
	TaxYear       TimeIdentifier = "TY"
	ReportingYear TimeIdentifier = "RY"
)

// Family groups identifiers that can share a range.
type Family string

const (
	FamilyAcademicYear     Family = "academic_year"
	FamilyCalendarYear     Family = "calendar_year"
	FamilyFinancialYear    Family = "financial_year"
	FamilyTaxYear          Family = "tax_year"
	FamilyReportingYear    Family = "reporting_year"
	FamilyCalendarQuarter  Family = "calendar_quarter"
	FamilyAcademicQuarter  Family = "academic_quarter"
	FamilyFinancialQuarter Family = "financial_quarter"
	FamilyMonth            Family = "month"
	FamilyWeek             Family = "week"
	FamilyTerm             Family = "term"
)

var families = map[Family][]TimeIdentifier{
	FamilyAcademicYear:     {AcademicYear},
	FamilyCalendarYear:     {CalendarYear},
	FamilyFinancialYear:    {FinancialYear},
	FamilyTaxYear:          {TaxYear},
	FamilyReportingYear:    {ReportingYear},
	FamilyCalendarQuarter:  {"Q1", "Q2", "Q3", "Q4"},
	FamilyAcademicQuarter:  {"AYQ1", "AYQ2", "AYQ3", "AYQ4"},
	FamilyFinancialQuarter: {"FYQ1", "FYQ2", "FYQ3", "FYQ4"},
	FamilyMonth:            numbered("M", 12),
	FamilyWeek:             numbered("W", 53),
	FamilyTerm:             {"T1", "T1T2", "T2", "T3"},
}

type position struct {
	family Family
	rank   int
}

var positions = func() map[TimeIdentifier]position {
	out := make(map[TimeIdentifier]position)
	for fam, codes := range families {
		for i, c := range codes {
			out[c] = position{family: fam, rank: i}
		}
	}
	return out
}()

func numbered(prefix string, n int) []TimeIdentifier {
	out := make([]TimeIdentifier, n)
	for i := range n {
		out[i] = TimeIdentifier(prefix + strconv.Itoa(i+1))
	}
	return out
}

// Valid reports whether the identifier is a known period code.
func (t TimeIdentifier) Valid() bool {
	_, ok := positions[t]
	return ok
}

// Family returns the family the identifier belongs to, or "" if unknown.
func (t TimeIdentifier) Family() Family {
	return positions[t].family
}

// Rank returns the chronological position of the identifier within its family.
func (t TimeIdentifier) Rank() int {
	return positions[t].rank
}

// MaxYear is the latest year a query may name.
const MaxYear = 9999

// TimePeriod is a (year, identifier) pair such as 2020 AY.
type TimePeriod struct {
	Year       int            `json:"year" yaml:"year" validate:"gte=1,lte=9999"`
	Identifier TimeIdentifier `json:"code" yaml:"code" validate:"required"`
}

// Compare orders periods chronologically. Periods of different families
// compare by year first, then by family name, so the order stays total.
func (p TimePeriod) Compare(o TimePeriod) int {
	if p.Year != o.Year {
		if p.Year < o.Year {
			return -1
		}
		return 1
	}
	pf, of := p.Identifier.Family(), o.Identifier.Family()
	if pf != of {
		return strings.Compare(string(pf), string(of))
	}
	return p.Identifier.Rank() - o.Identifier.Rank()
}

// Next returns the period immediately after p in the same family.
func (p TimePeriod) Next() TimePeriod {
	pos, ok := positions[p.Identifier]
	if !ok {
		return TimePeriod{Year: p.Year + 1, Identifier: p.Identifier}
	}
	codes := families[pos.family]
	if pos.rank+1 < len(codes) {
		return TimePeriod{Year: p.Year, Identifier: codes[pos.rank+1]}
	}
	return TimePeriod{Year: p.Year + 1, Identifier: codes[0]}
}

// String returns the compact form used in logs and fixtures, e.g. "2020_AY".
func (p TimePeriod) String() string {
	return fmt.Sprintf("%d_%s", p.Year, p.Identifier)
}

// ParseTimePeriod parses the compact "YEAR_CODE" form.
func ParseTimePeriod(s string) (TimePeriod, error) {
	year, code, ok := strings.Cut(s, "_")
	if !ok {
		return TimePeriod{}, fmt.Errorf("time period %q: expected YEAR_CODE", s)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return TimePeriod{}, fmt.Errorf("time period %q: invalid year: %w", s, err)
	}
	id := TimeIdentifier(code)
	if !id.Valid() {
		return TimePeriod{}, fmt.Errorf("time period %q: unknown identifier %q", s, code)
	}
	return TimePeriod{Year: y, Identifier: id}, nil
}

// Label returns a human readable label for the period.
func (p TimePeriod) Label() string {
	id := p.Identifier
	switch id.Family() {
	case FamilyAcademicYear:
		return fmt.Sprintf("%d/%02d", p.Year, (p.Year+1)%100)
	case FamilyFinancialYear, FamilyTaxYear:
		return fmt.Sprintf("%d-%02d", p.Year, (p.Year+1)%100)
	case FamilyCalendarYear, FamilyReportingYear:
		return strconv.Itoa(p.Year)
	case FamilyMonth:
		return fmt.Sprintf("%d %s", p.Year, time.Month(id.Rank()+1))
	case FamilyWeek:
		return fmt.Sprintf("%d Week %d", p.Year, id.Rank()+1)
	case FamilyAcademicQuarter:
		return fmt.Sprintf("%d/%02d Q%d", p.Year, (p.Year+1)%100, id.Rank()+1)
	case FamilyFinancialQuarter:
		return fmt.Sprintf("%d-%02d Q%d", p.Year, (p.Year+1)%100, id.Rank()+1)
	case FamilyTerm:
		return fmt.Sprintf("%d/%02d %s", p.Year, (p.Year+1)%100, termNames[id])
	default:
		return fmt.Sprintf("%d %s", p.Year, id)
	}
}

var termNames = map[TimeIdentifier]string{
	"T1":   "Autumn term",
	"T1T2": "Autumn and spring term",
	"T2":   "Spring term",
	"T3":   "Summer term",
}

// TimePeriodRange is an inclusive chronological range within one family.
type TimePeriodRange struct {
	Start TimePeriod `json:"start" yaml:"start"`
	End   TimePeriod `json:"end" yaml:"end"`
}

// Validate checks that both ends share a family and Start <= End.
func (r TimePeriodRange) Validate() error {
	if !r.Start.Identifier.Valid() {
		return fmt.Errorf("range start: unknown identifier %q", r.Start.Identifier)
	}
	if !r.End.Identifier.Valid() {
		return fmt.Errorf("range end: unknown identifier %q", r.End.Identifier)
	}
	for _, p := range []TimePeriod{r.Start, r.End} {
		if p.Year < 1 || p.Year > MaxYear {
			return fmt.Errorf("range %s..%s: year %d outside 1..%d", r.Start, r.End, p.Year, MaxYear)
		}
	}
	if r.Start.Identifier.Family() != r.End.Identifier.Family() {
		return fmt.Errorf("range %s..%s spans identifier families", r.Start, r.End)
	}
	if r.Start.Compare(r.End) > 0 {
		return fmt.Errorf("range %s..%s starts after it ends", r.Start, r.End)
	}
	return nil
}

// Len counts the periods in the range without enumerating them. An invalid
// range has none.
func (r TimePeriodRange) Len() int {
	if r.Validate() != nil {
		return 0
	}
	perYear := len(families[r.Start.Identifier.Family()])
	return (r.End.Year-r.Start.Year)*perYear + r.End.Identifier.Rank() - r.Start.Identifier.Rank() + 1
}

// Expand enumerates every period in the range in chronological order.
// An invalid range expands to nil.
func (r TimePeriodRange) Expand() []TimePeriod {
	n := r.Len()
	if n == 0 {
		return nil
	}
	out := make([]TimePeriod, 0, n)
	for p := r.Start; p.Compare(r.End) <= 0; p = p.Next() {
		out = append(out, p)
	}
	return out
}

func sortPeriods(periods []TimePeriod) {
	slices.SortFunc(periods, TimePeriod.Compare)
}
