package device

import "strings"

// Kind classifies a simulated device ("light", "fan", ...).
type Kind string

// Known device kinds.
const (
	KindLight           Kind = "light"
	KindSwitch          Kind = "switch"
	KindPlug            Kind = "plug"
	KindIrrigationValve Kind = "irrigation_valve"
	KindBlind           Kind = "blind"
	KindFan             Kind = "fan"
	KindDoorLock        Kind = "door_lock"
	KindThermostat      Kind = "thermostat"
	KindSensor          Kind = "sensor"
)

// FallbackKind is used when neither configuration nor serial says otherwise.
const FallbackKind = KindSwitch

// Capability selects the schedule channel and state rule of a device.
type Capability string

// Capabilities.
const (
	CapabilityBinary   Capability = "binary"
	CapabilityPosition Capability = "position"
	CapabilitySpeed    Capability = "speed"
	CapabilityLock     Capability = "lock"
	CapabilityDuration Capability = "duration"
	CapabilitySetpoint Capability = "setpoint"
	CapabilitySensor   Capability = "sensor"
)

// serialPrefixes maps serial prefixes to kinds. Checked in order.
var serialPrefixes = []struct {
	prefix string
	kind   Kind
}{
	{"LUZ", KindLight},
	{"LGHT", KindLight},
	{"ENCH", KindPlug},
	{"PLUG", KindPlug},
	{"RIEG", KindIrrigationValve},
	{"VALV", KindIrrigationValve},
	{"PERS", KindBlind},
	{"BLND", KindBlind},
	{"VENT", KindFan},
	{"FAN", KindFan},
	{"CERR", KindDoorLock},
	{"LOCK", KindDoorLock},
	{"TERM", KindThermostat},
	{"THRM", KindThermostat},
	{"SENS", KindSensor},
}

// kindAliases maps configuration spellings to kinds.
var kindAliases = map[string]Kind{
	"luz":                KindLight,
	"lampara":            KindLight,
	"light":              KindLight,
	"interruptor":        KindSwitch,
	"switch":             KindSwitch,
	"enchufe":            KindPlug,
	"plug":               KindPlug,
	"valvula":            KindIrrigationValve,
	"valvula_riego":      KindIrrigationValve,
	"riego":              KindIrrigationValve,
	"irrigation_valve":   KindIrrigationValve,
	"persiana":           KindBlind,
	"cortina":            KindBlind,
	"blind":              KindBlind,
	"ventilador":         KindFan,
	"fan":                KindFan,
	"cerradura":          KindDoorLock,
	"door_lock":          KindDoorLock,
	"lock":               KindDoorLock,
	"termostato":         KindThermostat,
	"thermostat":         KindThermostat,
	"sensor":             KindSensor,
	"sensor_ambiental":   KindSensor,
	"environment_sensor": KindSensor,
}

// kindCapabilities maps kinds to their default capability.
// Kinds missing here are binary.
var kindCapabilities = map[Kind]Capability{
	KindIrrigationValve: CapabilityDuration,
	KindBlind:           CapabilityPosition,
	KindFan:             CapabilitySpeed,
	KindDoorLock:        CapabilityLock,
	KindThermostat:      CapabilitySetpoint,
	KindSensor:          CapabilitySensor,
}

var capabilityAliases = map[string]Capability{
	"binary":    CapabilityBinary,
	"binario":   CapabilityBinary,
	"on_off":    CapabilityBinary,
	"position":  CapabilityPosition,
	"posicion":  CapabilityPosition,
	"speed":     CapabilitySpeed,
	"velocidad": CapabilitySpeed,
	"lock":      CapabilityLock,
	"bloqueo":   CapabilityLock,
	"duration":  CapabilityDuration,
	"duracion":  CapabilityDuration,
	"setpoint":  CapabilitySetpoint,
	"sensor":    CapabilitySensor,
}

// ParseKind normalises a configured kind. Unknown non-empty kinds are kept
// verbatim (lower-cased).
func ParseKind(s string) (Kind, bool) {
	n := normaliseName(s)
	if n == "" {
		return "", false
	}
	if k, ok := kindAliases[n]; ok {
		return k, true
	}
	return Kind(n), true
}

// ParseCapability normalises a configured capability.
func ParseCapability(s string) (Capability, bool) {
	c, ok := capabilityAliases[normaliseName(s)]
	return c, ok
}

// KindFromSerial looks the serial up in the prefix table.
func KindFromSerial(serial string) (Kind, bool) {
	upper := strings.ToUpper(serial)
	for _, p := range serialPrefixes {
		if strings.HasPrefix(upper, p.prefix) {
			return p.kind, true
		}
	}
	return "", false
}

// CapabilityOf returns the default capability of a kind.
func CapabilityOf(k Kind) Capability {
	if c, ok := kindCapabilities[k]; ok {
		return c
	}
	return CapabilityBinary
}

// ResolveKind derives kind and capability. Explicit hints win over the
// serial prefix table, which wins over FallbackKind. An explicit
// capability overrides the kind's default one.
func ResolveKind(kindHint, capabilityHint, serial string) (Kind, Capability) {
	kind, ok := ParseKind(kindHint)
	if !ok {
		kind, ok = KindFromSerial(serial)
	}
	if !ok {
		kind = FallbackKind
	}

	if c, ok := ParseCapability(capabilityHint); ok {
		return kind, c
	}
	return kind, CapabilityOf(kind)
}

func normaliseName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_", "á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u").Replace(s)
	return s
}
