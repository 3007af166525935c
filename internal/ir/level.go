package ir

import (
	"slices"
	"strings"
)

// GeographicLevel names the granularity of a Location.
type GeographicLevel string

const (
	LevelCountry                    GeographicLevel = "country"
	LevelRegion                     GeographicLevel = "region"
	LevelLocalAuthority             GeographicLevel = "local_authority"
	LevelLocalAuthorityDistrict     GeographicLevel = "local_authority_district"
	LevelParliamentaryConstituency  GeographicLevel = "parliamentary_constituency"
	LevelWard                       GeographicLevel = "ward"
	LevelOpportunityArea            GeographicLevel = "opportunity_area"
	LevelMultiAcademyTrust          GeographicLevel = "mat"
	LevelSponsor                    GeographicLevel = "sponsor"
	LevelProvider                   GeographicLevel = "provider"
	LevelInstitution                GeographicLevel = "institution"
	LevelSchool                     GeographicLevel = "school"
	LevelEnglishDevolvedArea        GeographicLevel = "english_devolved_area"
	LevelLocalEnterprisePartnership GeographicLevel = "local_enterprise_partnership"
	LevelRSCRegion                  GeographicLevel = "rsc_region"
	LevelPlanningArea               GeographicLevel = "planning_area"
)

// levelOrder is the display order of levels, coarsest first.
var levelOrder = []GeographicLevel{
	LevelCountry,
	LevelRegion,
	LevelRSCRegion,
	LevelEnglishDevolvedArea,
	LevelLocalEnterprisePartnership,
	LevelOpportunityArea,
	LevelLocalAuthority,
	LevelLocalAuthorityDistrict,
	LevelParliamentaryConstituency,
	LevelPlanningArea,
	LevelWard,
	LevelMultiAcademyTrust,
	LevelSponsor,
	LevelProvider,
	LevelInstitution,
	LevelSchool,
}

var levelLabels = map[GeographicLevel]string{
	LevelCountry:                    "National",
	LevelRegion:                     "Regional",
	LevelLocalAuthority:             "Local authority",
	LevelLocalAuthorityDistrict:     "Local authority district",
	LevelParliamentaryConstituency:  "Parliamentary constituency",
	LevelWard:                       "Ward",
	LevelOpportunityArea:            "Opportunity area",
	LevelMultiAcademyTrust:          "Multi-academy trust",
	LevelSponsor:                    "Sponsor",
	LevelProvider:                   "Provider",
	LevelInstitution:                "Institution",
	LevelSchool:                     "School",
	LevelEnglishDevolvedArea:        "English devolved area",
	LevelLocalEnterprisePartnership: "Local enterprise partnership",
	LevelRSCRegion:                  "RSC region",
	LevelPlanningArea:               "Planning area",
}

// Valid reports whether the level is known.
func (l GeographicLevel) Valid() bool {
	_, ok := levelLabels[l]
	return ok
}

// Label returns the display label of the level.
func (l GeographicLevel) Label() string {
	if label, ok := levelLabels[l]; ok {
		return label
	}
	return string(l)
}

// CompareLevels orders levels coarsest first. Unknown levels sort last by name.
func CompareLevels(a, b GeographicLevel) int {
	ai, bi := slices.Index(levelOrder, a), slices.Index(levelOrder, b)
	switch {
	case ai >= 0 && bi >= 0:
		return ai - bi
	case ai >= 0:
		return -1
	case bi >= 0:
		return 1
	default:
		return strings.Compare(string(a), string(b))
	}
}
