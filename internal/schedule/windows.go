package schedule

import "time"

var (
	windowDaysKeys  = []string{"dias", "days"}
	windowStartKeys = []string{"inicio", "start"}
	windowEndKeys   = []string{"fin", "end"}
)

// window is a parsed on-window: active on the listed days between start
// and end, both inclusive.
type window struct {
	days       []any
	start, end time.Duration
}

// contains reports whether clock t falls inside the window, wrapping
// midnight when start is after end.
func (w window) contains(t time.Duration) bool {
	if w.start <= w.end {
		return w.start <= t && t <= w.end
	}
	return t >= w.start || t <= w.end
}

// parseWindows keeps the well-formed windows of a window list.
func parseWindows(list []any) []window {
	var out []window
	for _, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		rawDays, _ := firstOf(m, windowDaysKeys)
		days, ok := rawDays.([]any)
		if !ok {
			continue
		}
		start, ok := clockField(m, windowStartKeys)
		if !ok {
			continue
		}
		end, ok := clockField(m, windowEndKeys)
		if !ok {
			continue
		}
		out = append(out, window{days: days, start: start, end: end})
	}
	return out
}

func clockField(m map[string]any, keys []string) (time.Duration, bool) {
	raw, ok := firstOf(m, keys)
	if !ok {
		return 0, false
	}
	s, ok := raw.(string)
	if !ok {
		return 0, false
	}
	return ParseClock(s)
}

// Windows reports whether any window in list applies today and contains
// now. Every window is checked; malformed windows are skipped.
//
// Example:
//
//	[{"dias": ["all"], "inicio": "22:00", "fin": "06:00"}]
//
// is on at 23:30 and at 05:00, off at 12:00.
func Windows(list []any, now time.Time) bool {
	t := clockOf(now)
	today := now.Weekday()

	on := false
	for _, w := range parseWindows(list) {
		if appliesOn(w.days, today) && w.contains(t) {
			on = true
		}
	}
	return on
}
