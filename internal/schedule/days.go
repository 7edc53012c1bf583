package schedule

import (
	"strings"
	"time"
)

// dayNames maps normalised day names (lower case, no accents) to weekdays.
// Spanish and English spellings and their common abbreviations are accepted.
var dayNames = map[string]time.Weekday{
	"lunes":     time.Monday,
	"lun":       time.Monday,
	"monday":    time.Monday,
	"mon":       time.Monday,
	"martes":    time.Tuesday,
	"mar":       time.Tuesday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"miercoles": time.Wednesday,
	"mie":       time.Wednesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"jueves":    time.Thursday,
	"jue":       time.Thursday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"viernes":   time.Friday,
	"vie":       time.Friday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"sabado":    time.Saturday,
	"sab":       time.Saturday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,
	"domingo":   time.Sunday,
	"dom":       time.Sunday,
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
}

// everyDayKeys are the names that match every day, in the order their
// per-day lists are collected.
var everyDayKeys = []string{"diario", "all", "every", "todos"}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u",
)

func normaliseDay(name string) string {
	return accentFolder.Replace(strings.ToLower(strings.TrimSpace(name)))
}

// ParseDay resolves a localized day name ("miércoles", "Wed", "sabado")
// to its weekday.
func ParseDay(name string) (time.Weekday, bool) {
	day, ok := dayNames[normaliseDay(name)]
	return day, ok
}

// isEveryDay reports whether name is one of the catch-all day names.
func isEveryDay(name string) bool {
	n := normaliseDay(name)
	for _, key := range everyDayKeys {
		if n == key {
			return true
		}
	}
	return false
}

// appliesOn reports whether a day list names today or a catch-all.
// Entries that are not strings or not day names are ignored.
func appliesOn(days []any, today time.Weekday) bool {
	for _, raw := range days {
		name, ok := raw.(string)
		if !ok {
			continue
		}
		if isEveryDay(name) {
			return true
		}
		if day, ok := ParseDay(name); ok && day == today {
			return true
		}
	}
	return false
}
