package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefixSystem is the base for the simulator's own status topics.
const TopicPrefixSystem = "devicesim/system"

// Topics provides builders for simulator MQTT topics.
//
// Telemetry goes to a single configured topic shared by every device
// (the backend keys messages by serial_number in the payload). Commands
// are addressed per device under a configured prefix:
//
//	topics := mqtt.Topics{}
//	topics.DeviceCommand("dispositivos/comando", "LUZ7K2M9Q0A")
//	// Returns: "dispositivos/comando/LUZ7K2M9Q0A"
type Topics struct{}

// SystemStatus returns the simulator status topic (online/offline/LWT).
//
// Example: devicesim/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// DeviceCommand returns the command topic for one device.
//
// Example: dispositivos/comando/LUZ7K2M9Q0A
func (Topics) DeviceCommand(prefix, serial string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(prefix, "/"), serial)
}

// AllDeviceCommands returns a pattern matching every device's command topic.
//
// Pattern: dispositivos/comando/+
func (Topics) AllDeviceCommands(prefix string) string {
	return strings.TrimRight(prefix, "/") + "/+"
}

// SerialFromCommandTopic extracts the device serial from a command topic.
//
// Returns:
//   - string: The serial segment
//   - bool: false if topic is not a direct child of prefix
func (Topics) SerialFromCommandTopic(prefix, topic string) (string, bool) {
	base := strings.TrimRight(prefix, "/") + "/"
	if !strings.HasPrefix(topic, base) {
		return "", false
	}
	serial := strings.TrimPrefix(topic, base)
	if serial == "" || strings.Contains(serial, "/") {
		return "", false
	}
	return serial, true
}
