package fleet

import "errors"

// Domain errors for the fleet package.
var (
	// ErrDeviceNotFound is returned when no device carries the serial.
	ErrDeviceNotFound = errors.New("fleet: device not found")

	// ErrDeviceExists is returned when a custom serial is already in use.
	ErrDeviceExists = errors.New("fleet: device already exists")

	// ErrInvalidCount is returned when asked to create fewer than one device.
	ErrInvalidCount = errors.New("fleet: count must be at least 1")

	// ErrSerialExhausted is returned when no unused serial could be generated.
	ErrSerialExhausted = errors.New("fleet: could not generate a unique serial")

	// ErrTemplateNotFound is returned when a named template does not exist.
	ErrTemplateNotFound = errors.New("fleet: template not found")

	// ErrInvalidTemplate is returned when a template file cannot be decoded.
	ErrInvalidTemplate = errors.New("fleet: invalid template")

	// ErrInvalidCommand is returned when a command payload cannot be decoded
	// or is missing a required field.
	ErrInvalidCommand = errors.New("fleet: invalid command")

	// ErrUnknownAction is returned for a command action the fleet does not handle.
	ErrUnknownAction = errors.New("fleet: unknown action")
)
