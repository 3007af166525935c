package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablebuilder/internal/ir"
	"github.com/roach88/tablebuilder/internal/store"
)

func TestBuildSubjectMeta_Filters(t *testing.T) {
	_, subject := absenceStore(t)

	meta := BuildSubjectMeta(subject)

	require.Len(t, meta.Filters, 2)
	gender, schoolType := meta.Filters[0], meta.Filters[1]

	assert.Equal(t, "gender", gender.ID)
	assert.Equal(t, "Pupil gender", gender.Hint)
	assert.Equal(t, "gender-all", gender.TotalItemID)
	require.Len(t, gender.Groups, 2)
	assert.Equal(t, "Total", gender.Groups[0].Label, "Total group first")
	assert.Equal(t, []FilterItemMeta{{ID: "female", Label: "Female"}, {ID: "male", Label: "Male"}}, gender.Groups[1].Items)

	assert.Equal(t, "school_type", schoolType.ID)
	assert.Equal(t, "st-total", schoolType.TotalItemID)
	require.Len(t, schoolType.Groups, 1)
	assert.Equal(t, []FilterItemMeta{
		{ID: "st-total", Label: "Total"},
		{ID: "st-primary", Label: "State-funded primary"},
		{ID: "st-secondary", Label: "State-funded secondary"},
	}, schoolType.Groups[0].Items)
}

func TestBuildSubjectMeta_Sequence(t *testing.T) {
	_, subject := absenceStore(t)
	subject.FilterSequence = []ir.FilterSequenceEntry{
		{ID: "school_type", Groups: []ir.FilterGroupSequenceEntry{
			{ID: "school_type-default", Items: []string{"st-secondary", "st-primary"}},
		}},
		{ID: "gender"},
	}
	subject.IndicatorSequence = []ir.IndicatorGroupSequenceEntry{
		{ID: "absence", Indicators: []string{"sess_overall", "sess_possible"}},
	}

	meta := BuildSubjectMeta(subject)

	require.Len(t, meta.Filters, 2)
	assert.Equal(t, "school_type", meta.Filters[0].ID)
	assert.Equal(t, []FilterItemMeta{
		{ID: "st-secondary", Label: "State-funded secondary"},
		{ID: "st-primary", Label: "State-funded primary"},
	}, meta.Filters[0].Groups[0].Items, "items left out of the sequence are dropped")
	assert.Len(t, meta.Filters[1].Groups, 2, "no group sequence falls back to label order")

	require.Len(t, meta.Indicators, 1)
	assert.Equal(t, "sess_overall", meta.Indicators[0].Indicators[0].ID)
}

func TestBuildSubjectMeta_Indicators(t *testing.T) {
	_, subject := absenceStore(t)

	meta := BuildSubjectMeta(subject)

	require.Len(t, meta.Indicators, 1)
	inds := meta.Indicators[0].Indicators
	require.Len(t, inds, 2)
	assert.Equal(t, "sess_possible", inds[0].ID)
	assert.Equal(t, "sess_overall", inds[1].ID)
	assert.Equal(t, "%", inds[1].Unit)
	require.NotNil(t, inds[1].DecimalPlaces)
	assert.Equal(t, 1, *inds[1].DecimalPlaces)
}

func TestBuildSubjectMeta_Locations(t *testing.T) {
	_, subject := absenceStore(t)

	meta := BuildSubjectMeta(subject)

	require.Len(t, meta.Locations, 3)

	country := meta.Locations[0]
	assert.Equal(t, ir.LevelCountry, country.Level)
	assert.Equal(t, "National", country.Label)
	require.Len(t, country.Options, 1)
	assert.Equal(t, "England", country.Options[0].Label)

	region := meta.Locations[1]
	require.Len(t, region.Options, 1)
	assert.Equal(t, "eng", region.Options[0].ID, "regions nest under their country")
	require.Len(t, region.Options[0].Options, 2)
	assert.Equal(t, "North East", region.Options[0].Options[0].Label)
	assert.Equal(t, "North West", region.Options[0].Options[1].Label)

	authority := meta.Locations[2]
	require.Len(t, authority.Options, 1)
	assert.Equal(t, "ne", authority.Options[0].ID)
	require.Len(t, authority.Options[0].Options, 1)
	merged := authority.Options[0].Options[0]
	assert.Equal(t, "la1", merged.ID)
	assert.Equal(t, "Hartlepool / Hartlepool UA", merged.Label)
	assert.Equal(t, []string{"la1", "la2"}, merged.LocationIDs)
}

func TestBuildSubjectMeta_TimePeriods(t *testing.T) {
	_, subject := absenceStore(t)

	meta := BuildSubjectMeta(subject)

	assert.Equal(t, []TimePeriodMeta{
		{Year: 2018, Code: ir.AcademicYear, Label: "2018/19"},
		{Year: 2019, Code: ir.AcademicYear, Label: "2019/20"},
		{Year: 2020, Code: ir.AcademicYear, Label: "2020/21"},
	}, meta.TimePeriods.Options)
	require.NotNil(t, meta.TimePeriods.Range)
	assert.Equal(t, ir.TimePeriodRange{Start: ay(2018), End: ay(2020)}, *meta.TimePeriods.Range)
}

func TestBuildResultMeta_Footprint(t *testing.T) {
	_, subject := absenceStore(t)
	fp := store.Footprint{
		LocationIDs:   []string{"eng"},
		TimePeriods:   []ir.TimePeriod{ay(2020)},
		FilterItemIDs: []string{"female", "male", "st-primary"},
	}

	meta := BuildResultMeta(subject, fp, []string{"sess_possible"}, DedupLocations(subject.Locations))

	require.Len(t, meta.Filters, 2)
	assert.Len(t, meta.Filters[0].Groups, 1, "empty Total group dropped")
	assert.Len(t, meta.Filters[0].Groups[0].Items, 2)
	assert.Equal(t, []FilterItemMeta{{ID: "st-primary", Label: "State-funded primary"}}, meta.Filters[1].Groups[0].Items)

	require.Len(t, meta.Indicators, 1)
	assert.Equal(t, "sess_possible", meta.Indicators[0].ID)

	require.Len(t, meta.Locations, 1)
	assert.Equal(t, ir.LevelCountry, meta.Locations[0].Level)

	require.Len(t, meta.TimePeriods.Options, 1)
	assert.Equal(t, "2020/21", meta.TimePeriods.Options[0].Label)
}

func TestBuildResultMeta_Empty(t *testing.T) {
	_, subject := absenceStore(t)

	meta := BuildResultMeta(subject, store.Footprint{}, nil, DedupLocations(subject.Locations))

	assert.Empty(t, meta.Filters)
	assert.Len(t, meta.Indicators, 2)
	assert.Empty(t, meta.Locations)
	assert.Empty(t, meta.TimePeriods.Options)
	assert.Nil(t, meta.TimePeriods.Range)
}
