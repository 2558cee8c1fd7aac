// Package feed defines the shared types used between the Vision One feed
// adapter and the import pipeline: raw collected entries, the flattener that
// normalizes them into STIX objects, and the chunker that re-groups objects
// into import-sized bundles. The concrete upstream adapter lives in the tv1
// subdirectory.
//
// STIX objects are carried as opaque json.RawMessage throughout — the
// pipeline imports them, it never interprets them.
package feed

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Bundle is a STIX bundle grouping a batch of objects for a single import
// call. Bundles are created fresh each cycle and never persisted.
type Bundle struct {
	Type    string            `json:"type"`
	ID      string            `json:"id"`
	Objects []json.RawMessage `json:"objects"`
}

// NewBundle wraps objects in a bundle with a freshly generated identifier.
func NewBundle(objects []json.RawMessage) Bundle {
	return Bundle{
		Type:    "bundle",
		ID:      "bundle--" + uuid.NewString(),
		Objects: objects,
	}
}

// Chunk splits objects into bundles of at most max objects each. Every bundle
// holds a contiguous slice of the input in original order; together the
// bundles cover the input exactly once. A nil or empty input yields no
// bundles. max must be positive.
func Chunk(objects []json.RawMessage, max int) []Bundle {
	if len(objects) == 0 {
		return nil
	}
	bundles := make([]Bundle, 0, (len(objects)+max-1)/max)
	for start := 0; start < len(objects); start += max {
		end := min(start+max, len(objects))
		bundles = append(bundles, NewBundle(objects[start:end:end]))
	}
	return bundles
}
