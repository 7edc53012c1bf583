// Package device is the per-device simulation engine.
//
// A Device owns a set of simulated parameters (see Rule), a power flag and
// a capability that decides which schedule channel drives it and when it
// reads "inactivo". Two goroutines run per started device:
//
//   - the telemetry loop evolves the parameters while powered and
//     publishes {serial_number, estado, parametros} every send interval;
//   - the reconciliation loop, present only with a Backend, fetches the
//     device's configuration document every poll interval and applies it
//     through Reconcile.
//
// Both loops share one mutex; every network call is made without it. I/O
// failures are logged and retried on the next period. Nothing stops a
// loop except Stop or context cancellation.
//
// Capabilities are a closed set. behaviorFor is the only place that maps
// a Capability to its behaviour.
//
// State transitions can optionally be appended to a Journal (SQLiteJournal
// in production). The journal is never read back into device state.
package device
