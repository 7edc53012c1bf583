package schedule

import (
	"sort"
	"time"
)

// Event is one scheduled change: at offset At from midnight the channel
// takes Value.
type Event[T any] struct {
	At    time.Duration
	Value T
}

// Effective returns the latest event at or before now.
//
// Events are stably sorted by time first, so two events at the same time
// apply in list order and the later one wins. The input slice is not
// modified. ok is false when no event has fired yet today.
func Effective[T any](events []Event[T], now time.Duration) (event Event[T], ok bool) {
	sorted := make([]Event[T], len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].At < sorted[j].At
	})

	for _, e := range sorted {
		if e.At > now {
			break
		}
		event, ok = e, true
	}
	return event, ok
}

// timeKeys and valueKeys are the accepted field names for object-form events.
var (
	timeKeys  = []string{"hora", "time", "at"}
	valueKeys = []string{"valor", "value", "accion", "action"}
)

// collect gathers the events that apply on today from a per-day channel:
// catch-all lists first, then lists keyed by today's name. Entries whose
// time or payload cannot be parsed are dropped.
func collect[T any](channel any, today time.Weekday, parse func(any) (T, bool)) []Event[T] {
	days, ok := channel.(map[string]any)
	if !ok {
		return nil
	}

	var everyDay, todays []string
	for key := range days {
		if isEveryDay(key) {
			everyDay = append(everyDay, key)
		} else if day, ok := ParseDay(key); ok && day == today {
			todays = append(todays, key)
		}
	}
	sort.Strings(everyDay)
	sort.Strings(todays)

	var events []Event[T]
	for _, key := range append(everyDay, todays...) {
		entries, ok := days[key].([]any)
		if !ok {
			continue
		}
		for _, entry := range entries {
			rawTime, rawValue, ok := splitEntry(entry)
			if !ok {
				continue
			}
			s, ok := rawTime.(string)
			if !ok {
				continue
			}
			at, ok := ParseClock(s)
			if !ok {
				continue
			}
			value, ok := parse(rawValue)
			if !ok {
				continue
			}
			events = append(events, Event[T]{At: at, Value: value})
		}
	}
	return events
}

// splitEntry accepts ["07:00", 80] and {"hora": "07:00", "valor": 80}.
func splitEntry(entry any) (rawTime, rawValue any, ok bool) {
	switch e := entry.(type) {
	case []any:
		if len(e) < 2 {
			return nil, nil, false
		}
		return e[0], e[1], true
	case map[string]any:
		rawTime, okT := firstOf(e, timeKeys)
		rawValue, okV := firstOf(e, valueKeys)
		return rawTime, rawValue, okT && okV
	default:
		return nil, nil, false
	}
}

// firstOf returns the value of the first key present in m.
func firstOf(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}
