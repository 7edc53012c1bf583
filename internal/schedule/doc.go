// Package schedule derives actuation values from a device configuration
// document and the current wall-clock time.
//
// Every function here is pure: the same document and the same time always
// produce the same result, and nothing is mutated. The device engine owns
// any state that has to survive between evaluations (the irrigation end
// time, for instance) and passes it back in.
//
// # Channels
//
// Each capability reads one key of the configuration document:
//
//	horarios        binary    windows [{dias, inicio, fin}] or per-day (time, on/off)
//	horarios_pos    position  per-day (time, 0-100)
//	horarios_speed  speed     per-day (time, integer >= 0)
//	horarios_lock   lock      per-day (time, lock/unlock)
//	horarios_riego  duration  per-day (time, minutes)
//	horarios_temp   setpoint  per-day (time, number)
//
// A per-day channel is a JSON object keyed by day name. The catch-all
// keys "diario", "all", "every" and "todos" apply to every day. Each day
// holds a list of events, either ["07:00", 80] pairs or {"hora": "07:00",
// "valor": 80} objects.
//
// # Evaluation
//
// Window lists are on when any window that applies today contains the
// current time; a window whose start is after its end wraps midnight.
//
// Per-day events use a single rule implemented by Effective: the
// catch-all events followed by today's events are stably sorted by time
// and the last event at or before now wins.
//
// Entries that cannot be parsed are skipped one by one.
package schedule
