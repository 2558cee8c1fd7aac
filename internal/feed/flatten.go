package feed

import "encoding/json"

// Feed entries arrive in several envelope variants depending on the tenant
// and the requested responseObjectFormat. Each variant is decoded as a typed
// probe; probes are tried in a fixed priority order and the first one that
// matches wins. The order is load-bearing — an entry can satisfy more than
// one shape, and tenants rely on the envelope-wrapped form taking precedence.
//
//  1. envelope.objects            (TAXII envelope wrapper)
//  2. content of type "bundle"    (taxiiEnvelope format, bundle per entry)
//  3. content.envelope.objects    (envelope nested under content)
//  4. top-level type "bundle"     (stixBundle format, bundle per page)
//  5. bare top-level objects list

type objectList struct {
	Objects []json.RawMessage `json:"objects"`
}

type envelopeEntry struct {
	Envelope *objectList `json:"envelope"`
}

type contentBundleEntry struct {
	Content *struct {
		Type    string            `json:"type"`
		Objects []json.RawMessage `json:"objects"`
	} `json:"content"`
}

type contentEnvelopeEntry struct {
	Content *envelopeEntry `json:"content"`
}

type bundleEntry struct {
	Type    string            `json:"type"`
	Objects []json.RawMessage `json:"objects"`
}

// shapeProbes is the ordered list of entry-shape decoders. A probe returns
// (objects, true) when the entry matches, where objects may be empty but
// non-nil. A matched-but-empty shape still counts as a match: later probes
// are not consulted.
var shapeProbes = []func(json.RawMessage) ([]json.RawMessage, bool){
	func(raw json.RawMessage) ([]json.RawMessage, bool) {
		var e envelopeEntry
		if json.Unmarshal(raw, &e) != nil || e.Envelope == nil || e.Envelope.Objects == nil {
			return nil, false
		}
		return e.Envelope.Objects, true
	},
	func(raw json.RawMessage) ([]json.RawMessage, bool) {
		var e contentBundleEntry
		if json.Unmarshal(raw, &e) != nil || e.Content == nil || e.Content.Type != "bundle" || e.Content.Objects == nil {
			return nil, false
		}
		return e.Content.Objects, true
	},
	func(raw json.RawMessage) ([]json.RawMessage, bool) {
		var e contentEnvelopeEntry
		if json.Unmarshal(raw, &e) != nil || e.Content == nil || e.Content.Envelope == nil || e.Content.Envelope.Objects == nil {
			return nil, false
		}
		return e.Content.Envelope.Objects, true
	},
	func(raw json.RawMessage) ([]json.RawMessage, bool) {
		var e bundleEntry
		if json.Unmarshal(raw, &e) != nil || e.Type != "bundle" || e.Objects == nil {
			return nil, false
		}
		return e.Objects, true
	},
	func(raw json.RawMessage) ([]json.RawMessage, bool) {
		var e objectList
		if json.Unmarshal(raw, &e) != nil || e.Objects == nil {
			return nil, false
		}
		return e.Objects, true
	},
}

// Flatten normalizes collected entries into a flat, order-preserving sequence
// of STIX objects. Entries that are not JSON objects, or that match no known
// shape, contribute nothing. Flatten never fails and never deduplicates.
func Flatten(entries []json.RawMessage) []json.RawMessage {
	var objects []json.RawMessage
	for _, entry := range entries {
		if !isJSONObject(entry) {
			continue
		}
		for _, probe := range shapeProbes {
			if objs, ok := probe(entry); ok {
				objects = append(objects, objs...)
				break
			}
		}
	}
	return objects
}

// isJSONObject reports whether raw begins with '{' after leading whitespace.
func isJSONObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
