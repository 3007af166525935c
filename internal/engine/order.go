package engine

import (
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/roach88/tablebuilder/internal/ir"
)

// OrderOptions parameterizes Order.
type OrderOptions[T any, ID comparable] struct {
	// Label selects the display text compared when there is no Sequence.
	Label func(T) string

	// ID selects the identity matched against Sequence.
	ID func(T) ID

	// Sequence is an explicit, authoritative order. Nil or empty means absent.
	Sequence []ID

	// Prioritize, if set, pulls matching items to the front when there is
	// no Sequence. An explicit Sequence already encodes their position.
	Prioritize func(T) bool
}

// Order returns items in display order.
//
// With a Sequence, items are emitted in Sequence order and items whose id
// the Sequence does not mention are dropped. Without one, items sort by
// label using natural, culture-aware comparison ("Item 2" < "Item 10"),
// prioritized items first, ties keeping input order.
//
// The input slice is not modified.
func Order[T any, ID comparable](items []T, opts OrderOptions[T, ID]) []T {
	if len(opts.Sequence) > 0 {
		return orderBySequence(items, opts)
	}

	out := slices.Clone(items)
	if out == nil {
		out = []T{}
	}
	coll := newCollator()
	slices.SortStableFunc(out, func(a, b T) int {
		if opts.Prioritize != nil {
			pa, pb := opts.Prioritize(a), opts.Prioritize(b)
			if pa != pb {
				if pa {
					return -1
				}
				return 1
			}
		}
		if opts.Label == nil {
			return 0
		}
		return coll.CompareString(opts.Label(a), opts.Label(b))
	})
	return out
}

func orderBySequence[T any, ID comparable](items []T, opts OrderOptions[T, ID]) []T {
	byID := make(map[ID]T, len(items))
	for _, item := range items {
		id := opts.ID(item)
		if _, dup := byID[id]; !dup {
			byID[id] = item
		}
	}

	out := make([]T, 0, min(len(items), len(opts.Sequence)))
	emitted := make(map[ID]bool, len(opts.Sequence))
	for _, id := range opts.Sequence {
		item, ok := byID[id]
		if !ok || emitted[id] {
			continue
		}
		emitted[id] = true
		out = append(out, item)
	}
	return out
}

// newCollator returns a natural-order English collator. Collators keep
// internal buffers, so each call gets its own.
func newCollator() *collate.Collator {
	return collate.New(language.English, collate.Numeric)
}

// compareNatural compares two labels the way Order does.
func compareNatural(a, b string) int {
	return newCollator().CompareString(a, b)
}

// totalFirst builds a Prioritize func for the Total convention.
func totalFirst[T any](label func(T) string) func(T) bool {
	return func(v T) bool { return ir.IsTotal(label(v)) }
}
