package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DeviceID is a backend device identifier. The backend may encode it as a
// JSON number or a string; both decode to the same textual form.
type DeviceID string

// String returns the identifier as used in request paths.
func (id DeviceID) String() string {
	return string(id)
}

// UnmarshalJSON accepts 42, "42" and null.
func (id *DeviceID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = DeviceID(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("device id: %w", err)
		}
		*id = DeviceID(n.String())
		return nil
	}
}

// DeviceRecord is the backend's view of one claimed device.
type DeviceRecord struct {
	ID     DeviceID `json:"id"`
	Serial string   `json:"serial_number"`
	Estado string   `json:"estado,omitempty"`

	// Config is the configuration document the simulator reconciles
	// against (the "configuracion" object).
	Config map[string]any `json:"configuracion"`
}

// DeviceUpdate is the body of a device update request.
type DeviceUpdate struct {
	Config map[string]any `json:"configuracion"`
	Estado string         `json:"estado"`
}
