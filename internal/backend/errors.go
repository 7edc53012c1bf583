package backend

import "errors"

// Sentinel errors for backend operations.
var (
	// ErrRequestFailed indicates the request never produced a response
	// (connection refused, timeout, cancelled context).
	ErrRequestFailed = errors.New("backend: request failed")

	// ErrUnexpectedStatus indicates a response with a non-2xx status.
	ErrUnexpectedStatus = errors.New("backend: unexpected status")

	// ErrDeviceNotFound indicates no device record carries the serial.
	ErrDeviceNotFound = errors.New("backend: device not found")
)
