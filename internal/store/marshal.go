package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/tablebuilder/internal/ir"
)

// marshalIDs converts an id list to canonical JSON TEXT for storage.
func marshalIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := ir.MarshalCanonical(ids)
	if err != nil {
		return "", fmt.Errorf("marshal ids: %w", err)
	}
	return string(data), nil
}

// marshalMeasures converts a measure map to canonical JSON TEXT for storage.
func marshalMeasures(measures map[string]string) (string, error) {
	if measures == nil {
		measures = map[string]string{}
	}
	data, err := ir.MarshalCanonical(measures)
	if err != nil {
		return "", fmt.Errorf("marshal measures: %w", err)
	}
	return string(data), nil
}

// marshalSequence converts an explicit sequence to JSON TEXT.
// Uses json.Encoder with HTML escaping disabled so labels round-trip as written.
func marshalSequence(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal sequence: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalIDs(data string) ([]string, error) {
	ids := []string{}
	if data == "" || data == "[]" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal ids: %w", err)
	}
	return ids, nil
}

func unmarshalMeasures(data string) (map[string]string, error) {
	measures := map[string]string{}
	if data == "" || data == "{}" {
		return measures, nil
	}
	if err := json.Unmarshal([]byte(data), &measures); err != nil {
		return nil, fmt.Errorf("unmarshal measures: %w", err)
	}
	return measures, nil
}

// unmarshalSequence decodes a stored sequence. "null" and "[]" both mean
// no explicit sequence and decode to nil.
func unmarshalSequence[T any](data string) ([]T, error) {
	if data == "" || data == "[]" || data == "null" {
		return nil, nil
	}
	var seq []T
	if err := json.Unmarshal([]byte(data), &seq); err != nil {
		return nil, fmt.Errorf("unmarshal sequence: %w", err)
	}
	if len(seq) == 0 {
		return nil, nil
	}
	return seq, nil
}
