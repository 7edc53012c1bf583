// Package api implements the local HTTP control API and live telemetry
// WebSocket for devicesim.
//
// This package provides:
//   - REST endpoints to list, create, remove, start and stop devices
//   - Parameter injection and power overrides for a running device
//   - Estado transition history from the SQLite journal
//   - A WebSocket hub that relays every published telemetry message
//
// # Architecture
//
// The server sits beside the MQTT bus, not in front of it. Devices keep
// publishing telemetry on their own loops; the Hub receives a copy of each
// message through Tee and broadcasts it to subscribed WebSocket clients.
//
// # Security
//
// There is no authentication. The server binds to 127.0.0.1 by default and
// is meant for local test harnesses only.
package api
