package device

import (
	"context"
	"time"
)

// Transition sources.
const (
	SourceTelemetry = "telemetry"
	SourceSchedule  = "schedule"
	SourceManual    = "manual"
)

// Transition is one change of a device's derived estado.
type Transition struct {
	// ID is the auto-incremented primary key.
	ID int64 `json:"id"`

	Serial  string `json:"serial"`
	Estado  string `json:"estado"`
	Powered bool   `json:"powered"`

	// Parameters is the parameter snapshot at the time of the change.
	Parameters map[string]any `json:"parameters"`

	// Source is how the change was observed (telemetry, schedule, manual).
	Source string `json:"source"`

	// CreatedAt is set by the store (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// Journal is a write-mostly audit trail of estado transitions.
// It is never read back into device state.
//
// Implementations must be thread-safe.
type Journal interface {
	// RecordTransition appends one transition.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - t: Transition to store; ID and CreatedAt are ignored
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordTransition(ctx context.Context, t Transition) error
}

// record appends a transition when a journal is configured. Failures are
// logged only.
func (d *Device) record(ctx context.Context, msg Message, powered bool, source string) {
	if d.journal == nil {
		return
	}
	t := Transition{
		Serial:     d.serial,
		Estado:     msg.Estado,
		Powered:    powered,
		Parameters: msg.Parametros,
		Source:     source,
	}
	if err := d.journal.RecordTransition(ctx, t); err != nil {
		d.logger.Warn("recording transition", "estado", t.Estado, "source", source, "error", err)
	}
}
