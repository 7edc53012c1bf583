package device

import (
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/devicesim/internal/schedule"
)

// Auxiliary parameter names carried by actuator capabilities.
const (
	ParamPosition         = "position"
	ParamSpeed            = "speed"
	ParamIrrigationActive = "irrigation_active"
	ParamSetpoint         = "setpoint"
	ParamLockState        = "lock_state"
)

// scheduleResult reports what a schedule pass derived.
type scheduleResult struct {
	// power is set when the capability derives an on/off state that
	// should be pushed back to the backend.
	power *bool
}

// behavior is the capability-specific part of a device.
//
// Every method is called with the device mutex held.
type behavior interface {
	// aux returns the auxiliary parameters and their defaults.
	aux() map[string]any

	// applyManual applies a document in manual mode.
	applyManual(d *Device, doc map[string]any)

	// applySchedule evaluates the capability's schedule channel.
	applySchedule(d *Device, doc map[string]any, now time.Time) scheduleResult

	// inactive reports whether the device currently reads as "inactivo".
	inactive(d *Device) bool
}

// behaviorFor selects the behavior of a capability.
func behaviorFor(c Capability) behavior {
	switch c {
	case CapabilityPosition:
		return positionBehavior{}
	case CapabilitySpeed:
		return speedBehavior{}
	case CapabilityLock:
		return lockBehavior{}
	case CapabilityDuration:
		return durationBehavior{}
	case CapabilitySetpoint:
		return setpointBehavior{}
	case CapabilitySensor:
		return sensorBehavior{}
	default:
		return binaryBehavior{}
	}
}

// actuator holds the defaults shared by non-binary capabilities: manual
// mode leaves them to live overrides and they read inactive when off.
type actuator struct{}

func (actuator) applyManual(*Device, map[string]any) {}

func (actuator) inactive(d *Device) bool { return !d.powered }

// binaryBehavior drives power from the "horarios" channel.
type binaryBehavior struct{}

func (binaryBehavior) aux() map[string]any { return nil }

func (binaryBehavior) applyManual(d *Device, doc map[string]any) {
	d.powered = truthy(doc["encendido"], true)
}

func (binaryBehavior) applySchedule(d *Device, doc map[string]any, now time.Time) scheduleResult {
	on, ok := schedule.Power(doc, now)
	if !ok {
		return scheduleResult{}
	}
	d.powered = on
	return scheduleResult{power: &on}
}

func (binaryBehavior) inactive(d *Device) bool { return !d.powered }

type positionBehavior struct{ actuator }

func (positionBehavior) aux() map[string]any { return map[string]any{ParamPosition: 0} }

func (positionBehavior) applySchedule(d *Device, doc map[string]any, now time.Time) scheduleResult {
	if pos, ok := schedule.Position(doc, now); ok {
		d.params[ParamPosition] = pos
	}
	return scheduleResult{}
}

func (positionBehavior) inactive(d *Device) bool {
	return isZero(d.params[ParamPosition]) || !d.powered
}

type speedBehavior struct{ actuator }

func (speedBehavior) aux() map[string]any { return map[string]any{ParamSpeed: 0} }

func (speedBehavior) applySchedule(d *Device, doc map[string]any, now time.Time) scheduleResult {
	if speed, ok := schedule.Speed(doc, now); ok {
		d.params[ParamSpeed] = speed
	}
	return scheduleResult{}
}

func (speedBehavior) inactive(d *Device) bool {
	return isZero(d.params[ParamSpeed]) || !d.powered
}

type lockBehavior struct{ actuator }

func (lockBehavior) aux() map[string]any {
	return map[string]any{ParamLockState: schedule.LockLocked}
}

func (lockBehavior) applySchedule(d *Device, doc map[string]any, now time.Time) scheduleResult {
	if state, ok := schedule.Lock(doc, now); ok {
		d.params[ParamLockState] = state
	}
	return scheduleResult{}
}

// durationBehavior runs irrigation for a scheduled number of minutes. The
// end time is carried on the device between passes.
type durationBehavior struct{ actuator }

func (durationBehavior) aux() map[string]any {
	return map[string]any{ParamIrrigationActive: false}
}

func (durationBehavior) applySchedule(d *Device, doc map[string]any, now time.Time) scheduleResult {
	active, end := schedule.Irrigation(doc, now, d.irrigationEnd)
	d.irrigationEnd = end
	d.params[ParamIrrigationActive] = active
	return scheduleResult{}
}

func (durationBehavior) inactive(d *Device) bool {
	active, _ := d.params[ParamIrrigationActive].(bool)
	return !active || !d.powered
}

type setpointBehavior struct{ actuator }

func (setpointBehavior) aux() map[string]any { return map[string]any{ParamSetpoint: 21.0} }

func (setpointBehavior) applySchedule(d *Device, doc map[string]any, now time.Time) scheduleResult {
	if v, ok := schedule.Setpoint(doc, now); ok {
		d.params[ParamSetpoint] = v
	}
	return scheduleResult{}
}

// sensorBehavior is read-only: no channel, no actuation.
type sensorBehavior struct{ actuator }

func (sensorBehavior) aux() map[string]any { return nil }

func (sensorBehavior) applySchedule(*Device, map[string]any, time.Time) scheduleResult {
	return scheduleResult{}
}

func isZero(v any) bool {
	f, ok := toFloat(v)
	return ok && f == 0
}

// truthy interprets a document flag. Missing or null values yield def.
func truthy(v any, def bool) bool {
	switch x := v.(type) {
	case nil:
		return def
	case bool:
		return x
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		switch s {
		case "on", "si", "sí", "yes":
			return true
		case "off", "no", "":
			return false
		}
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
		return true
	default:
		if f, ok := toFloat(x); ok {
			return f != 0
		}
		return def
	}
}
