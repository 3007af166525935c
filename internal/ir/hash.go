package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// DomainQuery prefixes query fingerprints. The version suffix allows the
// canonical form to change without colliding with old hashes.
const DomainQuery = "tablebuilder/query/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// QueryHash computes a content-addressed fingerprint of a query. Id lists
// are treated as sets, so selection order does not change the hash.
func QueryHash(q ObservationQueryContext) (string, error) {
	obj := map[string]any{
		"subject_id":      q.SubjectID,
		"filter_item_ids": sortedSet(q.FilterItemIDs),
		"location_ids":    sortedSet(q.LocationIDs),
		"indicator_ids":   sortedSet(q.IndicatorIDs),
	}
	if periods, ok := q.TimePeriod.Resolve(); ok {
		list := make([]string, len(periods))
		for i, p := range periods {
			list[i] = p.String()
		}
		obj["time_periods"] = list
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("QueryHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainQuery, canonical), nil
}

// MustQueryHash is like QueryHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustQueryHash(q ObservationQueryContext) string {
	h, err := QueryHash(q)
	if err != nil {
		panic(err)
	}
	return h
}

func sortedSet(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
