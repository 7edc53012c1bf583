package device

import (
	"context"
	"encoding/json"
	"maps"
	"time"
)

// Message is the telemetry payload published for every tick.
type Message struct {
	SerialNumber string         `json:"serial_number"`
	Estado       string         `json:"estado"`
	Parametros   map[string]any `json:"parametros"`
}

// Telemetry returns the message the device would publish now, without
// advancing any parameter.
func (d *Device) Telemetry() Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.messageLocked()
}

func (d *Device) messageLocked() Message {
	return Message{
		SerialNumber: d.serial,
		Estado:       d.estadoLocked(),
		Parametros:   maps.Clone(d.params),
	}
}

// Tick runs one telemetry iteration: when powered, every non-injected rule
// parameter evolves; then the message is published whether powered or
// not. Publish failures are logged and otherwise ignored.
//
// Returns:
//   - Message: The message that was published (or attempted)
func (d *Device) Tick(ctx context.Context) Message {
	d.mu.Lock()
	if d.powered {
		d.evolveLocked()
	}
	msg := d.messageLocked()
	kind := d.kind
	transition := d.noteEstadoLocked(msg.Estado)
	powered := d.powered
	d.mu.Unlock()

	d.publish(msg)

	if d.mirror != nil {
		d.mirror.WriteTelemetry(d.serial, string(kind), msg.Estado, msg.Parametros, d.now())
	}
	if transition {
		d.record(ctx, msg, powered, SourceTelemetry)
	}

	return msg
}

// evolveLocked advances every rule parameter not flagged injected.
func (d *Device) evolveLocked() {
	for name, rule := range d.rules {
		if d.injected[name] {
			continue
		}
		d.params[name] = Evolve(rule, d.params[name], d.rng)
	}
}

// noteEstadoLocked remembers estado and reports whether it changed.
func (d *Device) noteEstadoLocked(estado string) bool {
	if estado == d.lastEstado {
		return false
	}
	d.lastEstado = estado
	return true
}

func (d *Device) publish(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		d.logger.Error("encoding telemetry", "error", err)
		return
	}
	if err := d.publisher.PublishDefault(d.topic, payload); err != nil {
		d.logger.Warn("publishing telemetry", "topic", d.topic, "error", err)
		return
	}
	d.logger.Debug("telemetry published", "estado", msg.Estado)
}

// telemetryLoop ticks, then sleeps for the current send interval, until
// done is closed or ctx is cancelled. The interval is re-read every
// iteration so remote changes apply from the next sleep.
func (d *Device) telemetryLoop(ctx context.Context, done <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)

	for {
		d.Tick(ctx)

		timer := time.NewTimer(d.SendInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-done:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
