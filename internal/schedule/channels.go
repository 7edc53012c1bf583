package schedule

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Channel keys in the configuration document.
const (
	ChannelBinary   = "horarios"
	ChannelPosition = "horarios_pos"
	ChannelSpeed    = "horarios_speed"
	ChannelLock     = "horarios_lock"
	ChannelDuration = "horarios_riego"
	ChannelSetpoint = "horarios_temp"
)

// Lock states produced by Lock.
const (
	LockLocked   = "locked"
	LockUnlocked = "unlocked"
)

// Power evaluates the binary channel.
//
// The channel is either a window list or a per-day map of on/off events.
// ok is false when the document has no usable binary schedule or no event
// has fired yet today; the caller should then leave power unchanged.
func Power(doc map[string]any, now time.Time) (on, ok bool) {
	switch ch := doc[ChannelBinary].(type) {
	case []any:
		if len(parseWindows(ch)) == 0 {
			return false, false
		}
		return Windows(ch, now), true
	case map[string]any:
		e, ok := Effective(collect(ch, now.Weekday(), parseSwitch), clockOf(now))
		return e.Value, ok
	default:
		return false, false
	}
}

// Position evaluates the position channel (0-100).
func Position(doc map[string]any, now time.Time) (int, bool) {
	return latest(doc, ChannelPosition, now, parsePercent)
}

// Speed evaluates the speed channel (non-negative integer).
func Speed(doc map[string]any, now time.Time) (int, bool) {
	return latest(doc, ChannelSpeed, now, parseSpeed)
}

// Lock evaluates the lock channel, returning LockLocked or LockUnlocked.
func Lock(doc map[string]any, now time.Time) (string, bool) {
	return latest(doc, ChannelLock, now, parseLock)
}

// Setpoint evaluates the setpoint channel.
func Setpoint(doc map[string]any, now time.Time) (float64, bool) {
	return latest(doc, ChannelSetpoint, now, parseNumber)
}

// Irrigation evaluates the duration channel.
//
// When an event has fired today, end is that event's time plus its
// duration in minutes, replacing any earlier run. Otherwise carried, the
// end returned by the previous call, is kept so a run started before
// midnight continues until it expires. Irrigation is active while now is
// before end.
//
// Example: {"diario": [["06:00", 10]]} is active at 06:05 and not at 06:20.
func Irrigation(doc map[string]any, now time.Time, carried time.Time) (active bool, end time.Time) {
	end = carried
	events := collect(doc[ChannelDuration], now.Weekday(), parseMinutes)
	if e, ok := Effective(events, clockOf(now)); ok {
		end = midnight(now).Add(e.At + time.Duration(e.Value*float64(time.Minute)))
	}
	return now.Before(end), end
}

// latest applies Effective to a per-day channel.
func latest[T any](doc map[string]any, key string, now time.Time, parse func(any) (T, bool)) (T, bool) {
	e, ok := Effective(collect(doc[key], now.Weekday(), parse), clockOf(now))
	return e.Value, ok
}

// switchWords maps accepted binary event words to power states.
var switchWords = map[string]bool{
	"on":        true,
	"encender":  true,
	"encendido": true,
	"off":       false,
	"apagar":    false,
	"apagado":   false,
}

func parseSwitch(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		on, ok := switchWords[strings.ToLower(strings.TrimSpace(x))]
		return on, ok
	default:
		return false, false
	}
}

var lockWords = map[string]string{
	"lock":        LockLocked,
	"locked":      LockLocked,
	"bloquear":    LockLocked,
	"unlock":      LockUnlocked,
	"unlocked":    LockUnlocked,
	"desbloquear": LockUnlocked,
}

func parseLock(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	state, ok := lockWords[strings.ToLower(strings.TrimSpace(s))]
	return state, ok
}

func parsePercent(v any) (int, bool) {
	f, ok := parseNumber(v)
	if !ok || f < 0 || f > 100 {
		return 0, false
	}
	return int(math.Round(f)), true
}

func parseSpeed(v any) (int, bool) {
	f, ok := parseNumber(v)
	if !ok || f < 0 || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func parseMinutes(v any) (float64, bool) {
	f, ok := parseNumber(v)
	if !ok || f <= 0 {
		return 0, false
	}
	return f, true
}

// parseNumber accepts the numeric types a decoded JSON document can hold.
func parseNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
