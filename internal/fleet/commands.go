package fleet

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/devicesim/internal/infrastructure/mqtt"
)

// Command actions.
const (
	ActionSet      = "set"
	ActionSetBulk  = "set_bulk"
	ActionPowerOn  = "power_on"
	ActionPowerOff = "power_off"
	ActionStart    = "start"
	ActionStop     = "stop"
)

// commandQoS is the subscription QoS for command topics.
const commandQoS = 1

// Command is a live instruction for one device, received on
// {prefix}/{serial}:
//
//	{"action": "set", "parameter": "temperatura", "value": 99.5}
//	{"action": "set_bulk", "values": {"temperatura": 20, "humedad": 40}}
//	{"action": "power_off"}
type Command struct {
	Action    string         `json:"action"`
	Parameter string         `json:"parameter,omitempty"`
	Value     any            `json:"value,omitempty"`
	Values    map[string]any `json:"values,omitempty"`
}

// Subscriber registers MQTT handlers. Satisfied by *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// CommandHandler applies commands received over MQTT to fleet devices.
type CommandHandler struct {
	manager *Manager
	prefix  string
	ctx     context.Context //nolint:containedctx // Started devices run under the process context
	logger  Logger
	topics  mqtt.Topics
}

// NewCommandHandler creates a handler for commands under prefix.
//
// Parameters:
//   - ctx: Context devices are started with by the "start" action
//   - manager: Fleet the commands address
//   - prefix: Command topic prefix, e.g. "dispositivos/comando"
func NewCommandHandler(ctx context.Context, manager *Manager, prefix string) *CommandHandler {
	return &CommandHandler{
		manager: manager,
		prefix:  prefix,
		ctx:     ctx,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the handler.
func (h *CommandHandler) SetLogger(logger Logger) {
	h.logger = logger
}

// Subscribe registers the handler for every device's command topic.
func (h *CommandHandler) Subscribe(sub Subscriber) error {
	topic := h.topics.AllDeviceCommands(h.prefix)
	if err := sub.Subscribe(topic, commandQoS, h.Handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	h.logger.Info("listening for device commands", "topic", topic)
	return nil
}

// Unsubscribe stops receiving commands. Called before devices are stopped
// so a late "start" cannot revive one.
func (h *CommandHandler) Unsubscribe(sub Subscriber) error {
	topic := h.topics.AllDeviceCommands(h.prefix)
	if err := sub.Unsubscribe(topic); err != nil {
		return fmt.Errorf("unsubscribing from %s: %w", topic, err)
	}
	return nil
}

// Handle decodes and applies one command message.
//
// Parameters:
//   - topic: The command topic, whose last level is the device serial
//   - payload: JSON-encoded Command
//
// Returns:
//   - error: ErrInvalidCommand, ErrUnknownAction, ErrDeviceNotFound or the
//     device's own error (device.ErrUnknownParameter)
func (h *CommandHandler) Handle(topic string, payload []byte) error {
	serial, ok := h.topics.SerialFromCommandTopic(h.prefix, topic)
	if !ok {
		return fmt.Errorf("%w: unexpected topic %s", ErrInvalidCommand, topic)
	}

	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	d, err := h.manager.Get(serial)
	if err != nil {
		return err
	}

	h.logger.Info("received command", "serial", serial, "action", cmd.Action)

	switch cmd.Action {
	case ActionSet:
		if cmd.Parameter == "" {
			return fmt.Errorf("%w: set requires a parameter", ErrInvalidCommand)
		}
		return d.SetParameter(cmd.Parameter, cmd.Value)
	case ActionSetBulk:
		if len(cmd.Values) == 0 {
			return fmt.Errorf("%w: set_bulk requires values", ErrInvalidCommand)
		}
		d.SetParameters(cmd.Values)
	case ActionPowerOn:
		d.PowerOn()
	case ActionPowerOff:
		d.PowerOff()
	case ActionStart:
		d.Start(h.ctx)
	case ActionStop:
		d.Stop()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
	return nil
}
