package tv1

import (
	"fmt"
	"time"
)

// isoLayout is the timestamp format the feeds endpoint requires: second
// precision with a fixed .000 millisecond field and a literal Z suffix.
const isoLayout = "2006-01-02T15:04:05.000Z"

// Window is the UTC polling window [Start, End) for one cycle. Windows are
// recomputed from the wall clock every cycle and never persisted, so they
// tile exactly only when the inter-cycle sleep matches the window width.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns the window ending at now with the configured width.
func NewWindow(now time.Time, pollMinutes int) Window {
	end := now.UTC().Truncate(time.Second)
	return Window{
		Start: end.Add(-time.Duration(pollMinutes) * time.Minute),
		End:   end,
	}
}

// StartISO returns the window start in upstream wire format.
func (w Window) StartISO() string {
	return w.Start.UTC().Truncate(time.Second).Format(isoLayout)
}

// EndISO returns the window end in upstream wire format.
func (w Window) EndISO() string {
	return w.End.UTC().Truncate(time.Second).Format(isoLayout)
}

// ContextualFilter returns the TMV1-Contextual-Filter header value: the
// verbatim user filter when set, otherwise an expression synthesized from the
// configured location and industry defaults.
func ContextualFilter(userFilter, location, industry string) string {
	if userFilter != "" {
		return userFilter
	}
	return fmt.Sprintf(
		"(location eq '%s' or location eq 'No specified locations') and industry eq '%s'",
		location, industry,
	)
}
