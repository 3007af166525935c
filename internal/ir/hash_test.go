package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryHashDeterminism(t *testing.T) {
	q := ObservationQueryContext{
		SubjectID:     "subject-1",
		FilterItemIDs: []string{"male", "female"},
		LocationIDs:   []string{"loc-1"},
	}

	h1, err := QueryHash(q)
	require.NoError(t, err)
	h2, err := QueryHash(q)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestQueryHashIgnoresSelectionOrder(t *testing.T) {
	a := ObservationQueryContext{SubjectID: "s", LocationIDs: []string{"a", "b", "a"}}
	b := ObservationQueryContext{SubjectID: "s", LocationIDs: []string{"b", "a"}}

	assert.Equal(t, MustQueryHash(a), MustQueryHash(b))
}

func TestQueryHashRangeEqualsExplicitList(t *testing.T) {
	ranged := ObservationQueryContext{
		SubjectID: "s",
		TimePeriod: &TimePeriodQuery{Range: &TimePeriodRange{
			Start: TimePeriod{Year: 2019, Identifier: AcademicYear},
			End:   TimePeriod{Year: 2020, Identifier: AcademicYear},
		}},
	}
	listed := ObservationQueryContext{
		SubjectID: "s",
		TimePeriod: &TimePeriodQuery{Periods: []TimePeriod{
			{Year: 2020, Identifier: AcademicYear},
			{Year: 2019, Identifier: AcademicYear},
		}},
	}

	assert.Equal(t, MustQueryHash(ranged), MustQueryHash(listed))
}

func TestQueryHashChangesWithInput(t *testing.T) {
	base := ObservationQueryContext{SubjectID: "s", IndicatorIDs: []string{"ind-1"}}

	variants := map[string]ObservationQueryContext{
		"subject":    {SubjectID: "other", IndicatorIDs: []string{"ind-1"}},
		"indicators": {SubjectID: "s", IndicatorIDs: []string{"ind-2"}},
		"locations":  {SubjectID: "s", IndicatorIDs: []string{"ind-1"}, LocationIDs: []string{"loc"}},
		"time": {SubjectID: "s", IndicatorIDs: []string{"ind-1"}, TimePeriod: &TimePeriodQuery{
			Periods: []TimePeriod{{Year: 2020, Identifier: CalendarYear}},
		}},
	}

	for name, v := range variants {
		t.Run(name, func(t *testing.T) {
			assert.NotEqual(t, MustQueryHash(base), MustQueryHash(v))
		})
	}
}

func TestHashWithDomainSeparator(t *testing.T) {
	// "ab" + 0x00 + "c" must differ from "a" + 0x00 + "bc".
	assert.NotEqual(t, hashWithDomain("ab", []byte("c")), hashWithDomain("a", []byte("bc")))
}
