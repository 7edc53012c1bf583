// Package fleet creates and owns the simulated devices.
//
// Devices are created from JSON templates (see LoadTemplates) with either
// generated serials (prefix plus eight [A-Z0-9] characters) or one custom
// serial. The Manager keeps them by serial until they are removed and
// starts or stops them as a group.
//
// CommandHandler exposes live control over MQTT: parameter overrides
// (including out-of-range fault injection), power and start/stop.
package fleet
