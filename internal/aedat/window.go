package aedat

import "math"

// TimeWindow is an inclusive range of microsecond timestamps.
// A nil *TimeWindow selects every timestamp.
type TimeWindow struct {
	Start int64
	End   int64
}

// OpenWindow returns a window with only the bounds that are set; an unset
// start or end extends to the limit of int64.
func OpenWindow(start, end *int64) *TimeWindow {
	if start == nil && end == nil {
		return nil
	}
	w := &TimeWindow{Start: math.MinInt64, End: math.MaxInt64}
	if start != nil {
		w.Start = *start
	}
	if end != nil {
		w.End = *end
	}
	return w
}

// Contains reports whether ts lies inside the window.
func (w *TimeWindow) Contains(ts int64) bool {
	return w == nil || (ts >= w.Start && ts <= w.End)
}
