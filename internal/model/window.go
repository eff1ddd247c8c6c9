package model

import "time"

// Window is a half-open time interval [Start, End).  Both ends are kept in
// UTC.  Two windows that merely touch (one ends exactly when the other
// starts) do not overlap.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow normalizes start and end to UTC at whole-second precision.
func NewWindow(start, end time.Time) Window {
	return Window{Start: Canonical(start), End: Canonical(end)}
}

// Canonical converts t into the storage representation: UTC, truncated to
// the second.
func Canonical(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// Valid reports whether the window has a strictly positive duration.
func (w Window) Valid() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && w.Start.Before(w.End)
}

// Overlaps reports whether w and o share any instant: a1 < b2 && b1 < a2.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Equal compares both ends by instant.
func (w Window) Equal(o Window) bool {
	return w.Start.Equal(o.Start) && w.End.Equal(o.End)
}
