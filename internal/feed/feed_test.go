package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func rawObjects(n int) []json.RawMessage {
	objs := make([]json.RawMessage, n)
	for i := range objs {
		objs[i] = json.RawMessage(fmt.Sprintf(`{"id":"indicator--%d"}`, i))
	}
	return objs
}

// ── Chunk ─────────────────────────────────────────────────────────────────────

func TestChunkCoversInputExactlyOnce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n, max      int
		wantBundles int
	}{
		{n: 0, max: 5, wantBundles: 0},
		{n: 1, max: 5, wantBundles: 1},
		{n: 5, max: 5, wantBundles: 1},
		{n: 6, max: 5, wantBundles: 2},
		{n: 10, max: 5, wantBundles: 2},
		{n: 11, max: 5, wantBundles: 3},
		{n: 7, max: 1, wantBundles: 7},
		{n: 3, max: 5000, wantBundles: 1},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(fmt.Sprintf("n=%d_max=%d", tc.n, tc.max), func(t *testing.T) {
			t.Parallel()

			in := rawObjects(tc.n)
			bundles := Chunk(in, tc.max)
			if len(bundles) != tc.wantBundles {
				t.Fatalf("Chunk produced %d bundles, want %d", len(bundles), tc.wantBundles)
			}

			var flat []json.RawMessage
			for _, b := range bundles {
				if len(b.Objects) == 0 {
					t.Fatalf("bundle %s is empty", b.ID)
				}
				if len(b.Objects) > tc.max {
					t.Fatalf("bundle %s holds %d objects, max is %d", b.ID, len(b.Objects), tc.max)
				}
				flat = append(flat, b.Objects...)
			}
			if len(flat) != tc.n {
				t.Fatalf("bundles hold %d objects total, want %d", len(flat), tc.n)
			}
			for i := range flat {
				if string(flat[i]) != string(in[i]) {
					t.Errorf("object %d = %s, want %s (order not preserved)", i, flat[i], in[i])
				}
			}
		})
	}
}

func TestChunkBundleIdentity(t *testing.T) {
	t.Parallel()

	bundles := Chunk(rawObjects(6), 2)
	seen := map[string]bool{}
	for _, b := range bundles {
		if b.Type != "bundle" {
			t.Errorf("bundle type = %q, want %q", b.Type, "bundle")
		}
		if !strings.HasPrefix(b.ID, "bundle--") {
			t.Errorf("bundle id = %q, want bundle-- prefix", b.ID)
		}
		if seen[b.ID] {
			t.Errorf("bundle id %q generated twice", b.ID)
		}
		seen[b.ID] = true
	}
}

func TestChunkSerializesAsSTIXBundle(t *testing.T) {
	t.Parallel()

	bundles := Chunk(rawObjects(1), 10)
	out, err := json.Marshal(bundles[0])
	if err != nil {
		t.Fatalf("marshal bundle: %v", err)
	}
	var decoded struct {
		Type    string            `json:"type"`
		ID      string            `json:"id"`
		Objects []json.RawMessage `json:"objects"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if decoded.Type != "bundle" || len(decoded.Objects) != 1 {
		t.Errorf("round trip = %+v, want type bundle with 1 object", decoded)
	}
}

// ── Flatten ───────────────────────────────────────────────────────────────────

func TestFlattenShapeVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry string
		want  []string
	}{
		{
			name:  "envelope wrapped",
			entry: `{"envelope":{"objects":[{"id":"indicator--a"}]}}`,
			want:  []string{"indicator--a"},
		},
		{
			name:  "content as bundle",
			entry: `{"content":{"type":"bundle","objects":[{"id":"malware--b"}]}}`,
			want:  []string{"malware--b"},
		},
		{
			name:  "content envelope wrapped",
			entry: `{"content":{"envelope":{"objects":[{"id":"report--c"}]}}}`,
			want:  []string{"report--c"},
		},
		{
			name:  "direct bundle",
			entry: `{"type":"bundle","objects":[{"id":"indicator--d"},{"id":"indicator--e"}]}`,
			want:  []string{"indicator--d", "indicator--e"},
		},
		{
			name:  "bare objects list",
			entry: `{"objects":[{"id":"identity--f"}]}`,
			want:  []string{"identity--f"},
		},
		{
			name:  "unrecognized shape contributes nothing",
			entry: `{"id":"report--x","name":"weekly report"}`,
			want:  nil,
		},
		{
			name:  "content present but not a bundle",
			entry: `{"content":{"type":"report"}}`,
			want:  nil,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := Flatten([]json.RawMessage{json.RawMessage(tc.entry)})
			if len(got) != len(tc.want) {
				t.Fatalf("Flatten returned %d objects, want %d", len(got), len(tc.want))
			}
			for i, raw := range got {
				var obj struct {
					ID string `json:"id"`
				}
				if err := json.Unmarshal(raw, &obj); err != nil {
					t.Fatalf("object %d: %v", i, err)
				}
				if obj.ID != tc.want[i] {
					t.Errorf("object %d id = %q, want %q", i, obj.ID, tc.want[i])
				}
			}
		})
	}
}

// TestFlattenPriorityOrder pins the first-match-wins ordering: an entry that
// matches both the envelope-wrapped shape and the bare objects shape must
// yield the envelope's objects only.
func TestFlattenPriorityOrder(t *testing.T) {
	t.Parallel()

	entry := `{
		"envelope": {"objects": [{"id": "indicator--envelope"}]},
		"objects":  [{"id": "indicator--bare"}]
	}`
	got := Flatten([]json.RawMessage{json.RawMessage(entry)})
	if len(got) != 1 {
		t.Fatalf("Flatten returned %d objects, want 1", len(got))
	}
	if !strings.Contains(string(got[0]), "indicator--envelope") {
		t.Errorf("Flatten picked %s, want the envelope-wrapped object", got[0])
	}
}

func TestFlattenSkipsNonObjectEntries(t *testing.T) {
	t.Parallel()

	entries := []json.RawMessage{
		json.RawMessage(`"just a string"`),
		json.RawMessage(`42`),
		json.RawMessage(`[{"objects":[]}]`),
		json.RawMessage(`null`),
		json.RawMessage(`{"envelope":{"objects":[{"id":"indicator--only"}]}}`),
	}
	got := Flatten(entries)
	if len(got) != 1 {
		t.Fatalf("Flatten returned %d objects, want 1", len(got))
	}
}

func TestFlattenPreservesOrderAcrossEntries(t *testing.T) {
	t.Parallel()

	entries := []json.RawMessage{
		json.RawMessage(`{"envelope":{"objects":[{"id":"indicator--1"},{"id":"indicator--2"}]}}`),
		json.RawMessage(`{"type":"bundle","objects":[{"id":"indicator--3"}]}`),
		json.RawMessage(`{"objects":[{"id":"indicator--4"}]}`),
	}
	got := Flatten(entries)
	if len(got) != 4 {
		t.Fatalf("Flatten returned %d objects, want 4", len(got))
	}
	for i, raw := range got {
		want := fmt.Sprintf("indicator--%d", i+1)
		if !strings.Contains(string(raw), want) {
			t.Errorf("object %d = %s, want id %s", i, raw, want)
		}
	}
}

// Duplicates are passed through untouched: the downstream import is
// update-idempotent, dedup here would mask upstream behavior.
func TestFlattenKeepsDuplicates(t *testing.T) {
	t.Parallel()

	entry := json.RawMessage(`{"envelope":{"objects":[{"id":"indicator--dup"},{"id":"indicator--dup"}]}}`)
	got := Flatten([]json.RawMessage{entry, entry})
	if len(got) != 4 {
		t.Fatalf("Flatten returned %d objects, want 4 (duplicates preserved)", len(got))
	}
}

func TestFlattenEmptyObjectsListMatches(t *testing.T) {
	t.Parallel()

	// envelope.objects present but empty: the envelope shape matches and
	// contributes zero objects; the probe must not fall through to a later
	// shape on the same entry.
	entry := json.RawMessage(`{"envelope":{"objects":[]},"objects":[{"id":"indicator--bare"}]}`)
	got := Flatten([]json.RawMessage{entry})
	if len(got) != 0 {
		t.Fatalf("Flatten returned %d objects, want 0", len(got))
	}
}
