package influxdb

import "errors"

// Sentinel errors for the telemetry mirror. Writes never return errors;
// failures reach the onError callback given to Open.
var (
	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed wraps a failed ping or an unhealthy server at Open.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled is returned by Open when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
