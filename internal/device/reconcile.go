package device

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"strings"
	"time"

	"github.com/nerrad567/devicesim/internal/backend"
)

// Actuation modes carried in the "modo" field.
const (
	ModeManual   = "manual"
	ModeSchedule = "horario"
)

// Configuration document keys.
const (
	keyMode         = "modo"
	keyPowered      = "encendido"
	keyEstado       = "estado"
	keySendInterval = "intervalo_envio"
)

// pushPlan is a push-back prepared under the lock and sent without it.
type pushPlan struct {
	id     backend.DeviceID
	power  bool
	update backend.DeviceUpdate
}

// Reconcile applies a configuration document to the device.
//
// An absent or unknown "modo" means the device is not claimed yet and the
// call does nothing. On the first claimed document kind and capability are
// resolved from its kind/tipo and capability/capacidad fields and cached.
// Manual mode sets power from "encendido" (binary devices only); scheduled
// mode evaluates the capability's schedule channel and, for binary devices
// with a known backend id, pushes a changed power state back.
//
// Parameters:
//   - ctx: Bounds the push-back request
//   - doc: The device's "configuracion" object
//   - now: Evaluation time for schedules
//
// Returns:
//   - error: Only a failed push-back; it is retried on the next pass
func (d *Device) Reconcile(ctx context.Context, doc map[string]any, now time.Time) error {
	mode := strings.ToLower(strings.TrimSpace(stringField(doc, keyMode)))
	if mode != ModeManual && mode != ModeSchedule {
		d.logger.Info("device not yet claimed", "modo", doc[keyMode])
		return nil
	}

	d.mu.Lock()
	d.claimLocked(doc)

	wasPowered := d.powered
	var push *pushPlan
	source := SourceManual

	if mode == ModeManual {
		d.behavior.applyManual(d, doc)
	} else {
		source = SourceSchedule
		res := d.behavior.applySchedule(d, doc, now)
		if res.power != nil && d.backend != nil && d.backendID != "" && !d.pushedLocked(*res.power) {
			push = d.planPushLocked(doc, *res.power)
		}
	}

	if interval, ok := ParseSendInterval(doc[keySendInterval]); ok {
		d.sendInterval = interval
	}

	powered := d.powered
	kind := d.kind
	msg := d.messageLocked()
	transition := d.noteEstadoLocked(msg.Estado)
	d.mu.Unlock()

	if powered != wasPowered {
		d.logger.Info("power changed", "powered", powered, "source", source, "kind", kind)
		if d.mirror != nil {
			d.mirror.WritePowerTransition(d.serial, powered, source)
		}
	}
	if transition {
		d.record(ctx, msg, powered, source)
	}

	if push == nil {
		return nil
	}
	return d.push(ctx, push)
}

// claimLocked resolves kind and capability from the first claimed
// document. Later documents declaring something else are logged once per
// distinct declaration and otherwise ignored.
func (d *Device) claimLocked(doc map[string]any) {
	kindHint := stringField(doc, "kind", "tipo")
	capHint := stringField(doc, "capability", "capacidad")

	kind, capability := d.kind, d.capability
	if k, ok := ParseKind(kindHint); ok {
		kind, capability = k, CapabilityOf(k)
	}
	if c, ok := ParseCapability(capHint); ok {
		capability = c
	}

	if !d.claimed {
		d.claimed = true
		if kind != d.kind || capability != d.capability {
			d.logger.Info("kind resolved from configuration",
				"kind", kind, "capability", capability,
				"previous_kind", d.kind, "previous_capability", d.capability)
			d.setKind(kind, capability)
		}
		return
	}

	if kind == d.kind && capability == d.capability {
		return
	}
	declared := string(kind) + "/" + string(capability)
	if declared == d.driftWarned {
		return
	}
	d.driftWarned = declared
	d.logger.Warn("configuration declares a different kind, keeping the claimed one",
		"kind", d.kind, "capability", d.capability,
		"declared_kind", kind, "declared_capability", capability)
}

// pushedLocked reports whether power is the last value pushed.
func (d *Device) pushedLocked(power bool) bool {
	return d.lastPushedPower != nil && *d.lastPushedPower == power
}

func (d *Device) planPushLocked(doc map[string]any, power bool) *pushPlan {
	estado := d.estadoLocked()
	cfg := maps.Clone(doc)
	cfg[keyPowered] = power
	cfg[keyEstado] = estado
	return &pushPlan{
		id:     d.backendID,
		power:  power,
		update: backend.DeviceUpdate{Config: cfg, Estado: estado},
	}
}

// push sends a planned power state and records it on success.
func (d *Device) push(ctx context.Context, p *pushPlan) error {
	if err := d.backend.UpdateDevice(ctx, p.id, p.update); err != nil {
		return fmt.Errorf("pushing power state: %w", err)
	}

	d.mu.Lock()
	power := p.power
	d.lastPushedPower = &power
	d.mu.Unlock()

	d.logger.Info("power state pushed to backend", "backend_id", p.id, "encendido", p.power)
	return nil
}

// Poll runs one reconciliation pass: resolve the backend id if still
// unknown, fetch the device record and reconcile its configuration.
//
// Returns:
//   - error: backend.ErrDeviceNotFound while the serial is not registered,
//     or any fetch or push-back failure
func (d *Device) Poll(ctx context.Context) error {
	if d.backend == nil {
		return nil
	}

	d.mu.Lock()
	id := d.backendID
	d.mu.Unlock()

	if id == "" {
		found, err := d.backend.FindBySerial(ctx, d.serial)
		if err != nil {
			return fmt.Errorf("resolving backend id: %w", err)
		}
		d.mu.Lock()
		d.backendID = found
		d.mu.Unlock()
		id = found
		d.logger.Info("backend id resolved", "backend_id", id)
	}

	rec, err := d.backend.GetDevice(ctx, id)
	if err != nil {
		return fmt.Errorf("fetching configuration: %w", err)
	}

	return d.Reconcile(ctx, rec.Config, d.now())
}

// pollLoop polls once per poll interval until done is closed or ctx is
// cancelled. Failures are logged and retried on the next period.
func (d *Device) pollLoop(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		if err := d.Poll(ctx); err != nil {
			if errors.Is(err, backend.ErrDeviceNotFound) {
				d.logger.Debug("device not registered in backend yet")
			} else {
				d.logger.Warn("reconciliation failed", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
		}
	}
}

// stringField returns the first non-empty string among keys.
func stringField(doc map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := doc[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// ParseSendInterval reads an "intervalo_envio" value as whole seconds,
// raising anything below one second to one. Non-positive or non-numeric
// values are rejected.
func ParseSendInterval(v any) (time.Duration, bool) {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, false
	}
	secs := math.Max(1, math.Trunc(f))
	return time.Duration(secs) * time.Second, true
}
