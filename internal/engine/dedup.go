package engine

import (
	"cmp"
	"slices"
	"strings"

	"github.com/roach88/tablebuilder/internal/ir"
)

// LocationOption is one selectable location after deduplication. When
// several locations share a level and code, they become a single option
// whose LocationIDs lists every member.
type LocationOption struct {
	ID              string             `json:"id"`
	Label           string             `json:"label"`
	Code            string             `json:"code"`
	GeographicLevel ir.GeographicLevel `json:"geographic_level"`
	ParentID        string             `json:"parent_id,omitempty"`

	// LocationIDs are the member locations, in label order.
	LocationIDs []string `json:"location_ids"`

	// names holds the member names, parallel to LocationIDs.
	names []string
}

// Merged reports whether the option stands for more than one location.
func (o LocationOption) Merged() bool {
	return len(o.LocationIDs) > 1
}

// LocationOptions converts locations to one option each, without merging.
func LocationOptions(locations []ir.Location) []LocationOption {
	out := make([]LocationOption, len(locations))
	for i, l := range locations {
		out[i] = LocationOption{
			ID:              l.ID,
			Label:           l.Name,
			Code:            l.Code,
			GeographicLevel: l.GeographicLevel,
			ParentID:        l.ParentID,
			LocationIDs:     []string{l.ID},
			names:           []string{l.Name},
		}
	}
	return out
}

// DedupLocations merges locations that share a geographic level and code.
// See DedupOptions.
func DedupLocations(locations []ir.Location) []LocationOption {
	return DedupOptions(LocationOptions(locations))
}

// DedupOptions merges options sharing (GeographicLevel, Code):
//   - the merged label is the distinct names sorted and joined with " / "
//   - the merged id is the id of the member whose name sorts first
//   - options with an empty code are never merged
//
// After merging, options at the same level whose labels still collide get
// " (code)" appended.
//
// Output is ordered by level, then label, then code. DedupOptions is
// idempotent.
func DedupOptions(options []LocationOption) []LocationOption {
	groups := make(map[ir.LocationKey][]LocationOption)
	var keys []ir.LocationKey
	var out []LocationOption

	for _, o := range options {
		if o.Code == "" {
			out = append(out, o)
			continue
		}
		k := ir.LocationKey{Level: o.GeographicLevel, Code: o.Code}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], o)
	}
	for _, k := range keys {
		out = append(out, mergeGroup(groups[k]))
	}

	disambiguate(out)
	slices.SortFunc(out, compareOptions)
	return out
}

func mergeGroup(group []LocationOption) LocationOption {
	if len(group) == 1 {
		return group[0]
	}

	type member struct {
		id   string
		name string
	}
	var members []member
	nameSet := make(map[string]bool)
	for _, o := range group {
		for i, id := range o.LocationIDs {
			members = append(members, member{id: id, name: o.names[i]})
			nameSet[o.names[i]] = true
		}
	}
	slices.SortFunc(members, func(a, b member) int {
		return cmp.Or(strings.Compare(a.name, b.name), strings.Compare(a.id, b.id))
	})

	names := make([]string, 0, len(nameSet))
	for n := range nameSet {
		names = append(names, n)
	}
	slices.Sort(names)

	var ids, memberNames []string
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if !seen[m.id] {
			seen[m.id] = true
			ids = append(ids, m.id)
			memberNames = append(memberNames, m.name)
		}
	}

	first := group[0]
	for _, o := range group {
		if o.ID == members[0].id {
			first = o
		}
	}
	return LocationOption{
		ID:              members[0].id,
		Label:           strings.Join(names, " / "),
		Code:            first.Code,
		GeographicLevel: first.GeographicLevel,
		ParentID:        first.ParentID,
		LocationIDs:     ids,
		names:           memberNames,
	}
}

// disambiguate appends " (code)" to labels shared by options with
// different codes at the same level. A label already ending in its own
// " (code)" is compared without it, so a second pass changes nothing.
func disambiguate(options []LocationOption) {
	base := make([]string, len(options))
	for i, o := range options {
		base[i] = o.Label
		if o.Code != "" {
			base[i] = strings.TrimSuffix(o.Label, codeSuffix(o))
		}
	}
	shared := sharedLabels(options, func(i int) string { return base[i] })
	for i, o := range options {
		if o.Code != "" && shared(i) {
			options[i].Label = base[i] + codeSuffix(o)
		}
	}

	// A suffixed label can still collide with a name that happens to end
	// in another option's code.
	shared = sharedLabels(options, func(i int) string { return options[i].Label })
	for i, o := range options {
		if o.Code != "" && shared(i) && !strings.HasSuffix(o.Label, codeSuffix(o)) {
			options[i].Label += codeSuffix(o)
		}
	}
}

func codeSuffix(o LocationOption) string {
	return " (" + o.Code + ")"
}

// sharedLabels reports, per option index, whether label(i) is used by
// options with more than one code at the same level.
func sharedLabels(options []LocationOption, label func(int) string) func(int) bool {
	type labelKey struct {
		level ir.GeographicLevel
		label string
	}
	codes := make(map[labelKey]map[string]bool)
	for i, o := range options {
		k := labelKey{o.GeographicLevel, label(i)}
		if codes[k] == nil {
			codes[k] = make(map[string]bool)
		}
		codes[k][o.Code] = true
	}
	return func(i int) bool {
		return len(codes[labelKey{options[i].GeographicLevel, label(i)}]) > 1
	}
}

func compareOptions(a, b LocationOption) int {
	return cmp.Or(
		ir.CompareLevels(a.GeographicLevel, b.GeographicLevel),
		strings.Compare(a.Label, b.Label),
		strings.Compare(a.Code, b.Code),
		strings.Compare(a.ID, b.ID),
	)
}

// optionIndex maps every member location id to its option.
func optionIndex(options []LocationOption) map[string]*LocationOption {
	idx := make(map[string]*LocationOption)
	for i := range options {
		for _, id := range options[i].LocationIDs {
			idx[id] = &options[i]
		}
	}
	return idx
}
