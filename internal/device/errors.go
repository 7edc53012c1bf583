package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrUnknownParameter) {
//	    // report failure to the caller
//	}
var (
	// ErrUnknownParameter is returned when setting a parameter the device does not have.
	ErrUnknownParameter = errors.New("device: unknown parameter")

	// ErrMissingSerial is returned when creating a device without a serial.
	ErrMissingSerial = errors.New("device: serial is required")

	// ErrMissingPublisher is returned when creating a device without a telemetry publisher.
	ErrMissingPublisher = errors.New("device: publisher is required")

	// ErrInvalidTransition is returned when a journal entry lacks a serial.
	ErrInvalidTransition = errors.New("device: invalid transition")
)
