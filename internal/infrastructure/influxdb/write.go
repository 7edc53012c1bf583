package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTelemetry writes one device telemetry sample.
//
// Parameters that are not scalar (nil, maps, slices) are dropped since
// InfluxDB fields must be numbers, booleans or strings. A sample with no
// scalar parameters is not written.
//
// Parameters:
//   - serial: Device serial number (tag)
//   - kind: Device kind, e.g. "light" (tag)
//   - estado: Derived state, "activo" or "inactivo" (tag)
//   - params: Current parameter values (fields)
//   - ts: Sample timestamp
//
// Example:
//
//	mirror.WriteTelemetry("LUZ7K2M9Q0A", "light", "activo",
//	    map[string]any{"brillo": 72.4, "encendido": true}, time.Now())
func (m *Mirror) WriteTelemetry(serial, kind, estado string, params map[string]any, ts time.Time) {
	if !m.writable() {
		return
	}

	fields := telemetryFields(params)
	if len(fields) == 0 {
		return
	}

	m.writeAPI.WritePoint(write.NewPoint(
		m.telemetry,
		map[string]string{
			"serial_number": serial,
			"kind":          kind,
			"estado":        estado,
		},
		fields,
		ts,
	))
}

// WritePowerTransition records a power state change and what caused it
// ("schedule", "manual", "command").
func (m *Mirror) WritePowerTransition(serial string, powered bool, source string) {
	if !m.writable() {
		return
	}

	m.writeAPI.WritePoint(write.NewPoint(
		m.power,
		map[string]string{
			"serial_number": serial,
			"source":        source,
		},
		map[string]any{"powered": powered},
		time.Now(),
	))
}

// telemetryFields converts device parameters into InfluxDB field values.
func telemetryFields(params map[string]any) map[string]any {
	fields := make(map[string]any, len(params))
	for name, value := range params {
		switch v := value.(type) {
		case bool, string, float64, float32, int64, int32, uint64:
			fields[name] = v
		case int:
			fields[name] = int64(v)
		}
	}
	return fields
}
