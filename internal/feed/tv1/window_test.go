package tv1

import (
	"strings"
	"testing"
	"time"
)

func TestNewWindowWidth(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 15, 10, 30, 45, 123456789, time.UTC)
	w := NewWindow(now, 60)

	if got := w.End.Sub(w.Start); got != time.Hour {
		t.Errorf("window width = %v, want 1h", got)
	}
	if w.End.Nanosecond() != 0 {
		t.Errorf("window end not truncated to seconds: %v", w.End)
	}
}

func TestWindowISOFormat(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 15, 10, 30, 45, 0, time.UTC)
	w := NewWindow(now, 30)

	if got, want := w.EndISO(), "2026-03-15T10:30:45.000Z"; got != want {
		t.Errorf("EndISO = %q, want %q", got, want)
	}
	if got, want := w.StartISO(), "2026-03-15T10:00:45.000Z"; got != want {
		t.Errorf("StartISO = %q, want %q", got, want)
	}
}

// The endpoint requires a fixed .000 millisecond field; sub-second precision
// from the wall clock must never leak into the wire format.
func TestWindowISOFixedMilliseconds(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 15, 10, 30, 45, 987654321, time.UTC)
	w := NewWindow(now, 60)
	if !strings.HasSuffix(w.EndISO(), ".000Z") {
		t.Errorf("EndISO = %q, want .000Z suffix", w.EndISO())
	}
	if !strings.HasSuffix(w.StartISO(), ".000Z") {
		t.Errorf("StartISO = %q, want .000Z suffix", w.StartISO())
	}
}

func TestNewWindowConvertsToUTC(t *testing.T) {
	t.Parallel()

	local := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, local)
	w := NewWindow(now, 60)

	if got, want := w.EndISO(), "2026-03-15T10:00:00.000Z"; got != want {
		t.Errorf("EndISO = %q, want %q", got, want)
	}
}

func TestContextualFilterPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		userFilter string
		location   string
		industry   string
		want       string
	}{
		{
			name:       "explicit filter wins verbatim",
			userFilter: "location eq 'Germany'",
			location:   "France",
			industry:   "Energy",
			want:       "location eq 'Germany'",
		},
		{
			name:     "synthesized from location and industry",
			location: "Sweden",
			industry: "Banking",
			want:     "(location eq 'Sweden' or location eq 'No specified locations') and industry eq 'Banking'",
		},
		{
			name:     "defaults pass through unchanged",
			location: "No specified locations",
			industry: "No specified industries",
			want:     "(location eq 'No specified locations' or location eq 'No specified locations') and industry eq 'No specified industries'",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ContextualFilter(tc.userFilter, tc.location, tc.industry)
			if got != tc.want {
				t.Errorf("ContextualFilter = %q, want %q", got, tc.want)
			}
		})
	}
}
