package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tp(year int, code TimeIdentifier) TimePeriod {
	return TimePeriod{Year: year, Identifier: code}
}

func TestTimePeriodCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b TimePeriod
		want int
	}{
		{"earlier year", tp(2019, AcademicYear), tp(2020, AcademicYear), -1},
		{"same", tp(2020, "Q2"), tp(2020, "Q2"), 0},
		{"quarter rank", tp(2020, "Q4"), tp(2020, "Q1"), 1},
		{"month 10 after month 2", tp(2020, "M10"), tp(2020, "M2"), 1},
		{"term order", tp(2020, "T1T2"), tp(2020, "T2"), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Compare(tt.b)
			switch {
			case tt.want < 0:
				assert.Negative(t, got)
			case tt.want > 0:
				assert.Positive(t, got)
			default:
				assert.Zero(t, got)
			}
		})
	}
}

func TestTimePeriodNextWrapsYear(t *testing.T) {
	assert.Equal(t, tp(2021, "Q1"), tp(2020, "Q4").Next())
	assert.Equal(t, tp(2020, "Q3"), tp(2020, "Q2").Next())
	assert.Equal(t, tp(2021, AcademicYear), tp(2020, AcademicYear).Next())
	assert.Equal(t, tp(2021, "W1"), tp(2020, "W53").Next())
}

func TestTimePeriodRangeExpand(t *testing.T) {
	r := TimePeriodRange{Start: tp(2020, "Q3"), End: tp(2021, "Q2")}

	got := r.Expand()

	assert.Equal(t, []TimePeriod{
		tp(2020, "Q3"), tp(2020, "Q4"), tp(2021, "Q1"), tp(2021, "Q2"),
	}, got)
}

func TestTimePeriodRangeLen(t *testing.T) {
	tests := []struct {
		name string
		r    TimePeriodRange
	}{
		{"single", TimePeriodRange{tp(2020, AcademicYear), tp(2020, AcademicYear)}},
		{"weeks across a year", TimePeriodRange{tp(2019, "W52"), tp(2020, "W2")}},
		{"quarters", TimePeriodRange{tp(2020, "Q3"), tp(2023, "Q1")}},
		{"terms", TimePeriodRange{tp(2019, "T1T2"), tp(2021, "T3")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, len(tt.r.Expand()), tt.r.Len())
		})
	}

	assert.Equal(t, 4, TimePeriodRange{tp(2019, "W52"), tp(2020, "W2")}.Len())
	assert.Equal(t, MaxYear*53, TimePeriodRange{tp(1, "W1"), tp(MaxYear, "W53")}.Len())
}

func TestTimePeriodRangeValidate(t *testing.T) {
	tests := []struct {
		name    string
		r       TimePeriodRange
		wantErr bool
	}{
		{"single period", TimePeriodRange{tp(2020, CalendarYear), tp(2020, CalendarYear)}, false},
		{"mixed families", TimePeriodRange{tp(2020, CalendarYear), tp(2021, AcademicYear)}, true},
		{"reversed", TimePeriodRange{tp(2021, CalendarYear), tp(2020, CalendarYear)}, true},
		{"unknown code", TimePeriodRange{tp(2020, "XX"), tp(2020, "XX")}, true},
		{"year past max", TimePeriodRange{tp(2020, "W1"), tp(200000, "W53")}, true},
		{"year zero", TimePeriodRange{tp(0, CalendarYear), tp(2020, CalendarYear)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Zero(t, tt.r.Len())
				assert.Nil(t, tt.r.Expand())
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseTimePeriod(t *testing.T) {
	p, err := ParseTimePeriod("2020_AY")
	require.NoError(t, err)
	assert.Equal(t, tp(2020, AcademicYear), p)
	assert.Equal(t, "2020_AY", p.String())

	for _, bad := range []string{"2020", "abcd_AY", "2020_ZZ"} {
		_, err := ParseTimePeriod(bad)
		assert.Error(t, err, bad)
	}
}

func TestTimePeriodLabel(t *testing.T) {
	tests := []struct {
		period TimePeriod
		want   string
	}{
		{tp(2020, AcademicYear), "2020/21"},
		{tp(2019, FinancialYear), "2019-20"},
		{tp(2020, CalendarYear), "2020"},
		{tp(2020, "Q2"), "2020 Q2"},
		{tp(2020, "M3"), "2020 March"},
		{tp(2020, "W12"), "2020 Week 12"},
		{tp(2020, "T2"), "2020/21 Spring term"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.period.Label())
		})
	}
}

func TestTimePeriodQueryResolve(t *testing.T) {
	var nilQuery *TimePeriodQuery
	_, ok := nilQuery.Resolve()
	assert.False(t, ok)

	q := &TimePeriodQuery{Periods: []TimePeriod{tp(2021, CalendarYear), tp(2020, CalendarYear), tp(2021, CalendarYear)}}
	got, ok := q.Resolve()
	assert.True(t, ok)
	assert.Equal(t, []TimePeriod{tp(2020, CalendarYear), tp(2021, CalendarYear)}, got)
}
