// Package mqtt provides MQTT client connectivity for the device simulator.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Telemetry publishing with bounded publish timeouts
//   - Command topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// Every simulated device publishes through one shared Client:
//
//	Device telemetry loops ─▶ Client ─▶ Broker ─▶ Backend ingest
//	Fleet command handler  ◀─ Client ◀─ Broker ◀─ Operators / tooling
//
// Telemetry is fire-and-forget from the device's point of view: a failed
// publish is logged by the caller and the next tick publishes again.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishDefault("dispositivos/estado", payload)
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceCommands("dispositivos/comando"), 1,
//	    func(topic string, payload []byte) error {
//	        return handler.Handle(topic, payload)
//	    })
package mqtt
