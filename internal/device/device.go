package device

import (
	"context"
	"fmt"
	"maps"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nerrad567/devicesim/internal/backend"
)

// Derived states reported in telemetry.
const (
	EstadoActivo   = "activo"
	EstadoInactivo = "inactivo"
)

// Default timings.
const (
	DefaultSendInterval = 5 * time.Second
	DefaultPollInterval = 3 * time.Second
	DefaultStopGrace    = time.Second
	DefaultTopic        = "dispositivos/estado"
)

// Logger defines the logging interface used by devices.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher sends telemetry. Satisfied by *mqtt.Client.
type Publisher interface {
	PublishDefault(topic string, payload []byte) error
}

// Backend is the subset of the backend client a device needs.
// Satisfied by *backend.Client.
type Backend interface {
	FindBySerial(ctx context.Context, serial string) (backend.DeviceID, error)
	GetDevice(ctx context.Context, id backend.DeviceID) (*backend.DeviceRecord, error)
	UpdateDevice(ctx context.Context, id backend.DeviceID, update backend.DeviceUpdate) error
}

// TelemetryMirror receives a copy of every telemetry sample.
// Satisfied by *influxdb.Mirror.
type TelemetryMirror interface {
	WriteTelemetry(serial, kind, estado string, params map[string]any, ts time.Time)
	WritePowerTransition(serial string, powered bool, source string)
}

// Config holds everything needed to build a Device.
type Config struct {
	// Serial is the device's unique, immutable identifier.
	Serial string

	// Rules are the simulated parameters.
	Rules Rules

	// KindHint and CapabilityHint come from the template; either may be
	// empty, in which case the serial prefix table decides.
	KindHint       string
	CapabilityHint string

	SendInterval time.Duration // DefaultSendInterval if zero
	PollInterval time.Duration // DefaultPollInterval if zero
	StopGrace    time.Duration // DefaultStopGrace if zero
	Topic        string        // DefaultTopic if empty

	// Publisher is required. Backend, Mirror and Journal are optional;
	// without a Backend the reconciliation loop does not run.
	Publisher Publisher
	Backend   Backend
	Mirror    TelemetryMirror
	Journal   Journal

	// Logger should already carry the serial (logger.With("serial", ...)).
	Logger Logger

	// Rand and Now are injectable for tests.
	Rand *rand.Rand
	Now  func() time.Time
}

// Device is one simulated device: its parameters, its power state, and
// the two loops that publish telemetry and reconcile remote configuration.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
//   - mu guards the simulated state; network calls are made without it.
type Device struct {
	serial       string
	rules        Rules
	topic        string
	pollInterval time.Duration
	stopGrace    time.Duration

	publisher Publisher
	backend   Backend
	mirror    TelemetryMirror
	journal   Journal
	logger    Logger
	now       func() time.Time

	mu              sync.Mutex
	rng             *rand.Rand
	kind            Kind
	capability      Capability
	behavior        behavior
	claimed         bool
	driftWarned     string
	params          map[string]any
	injected        map[string]bool
	powered         bool
	sendInterval    time.Duration
	backendID       backend.DeviceID
	irrigationEnd   time.Time
	lastPushedPower *bool
	lastEstado      string

	runMu   sync.Mutex
	running bool
	done    chan struct{}
	exited  chan struct{}
}

// New creates a powered-on, stopped device with freshly sampled parameters.
//
// Returns:
//   - *Device: Ready to Start
//   - error: If the serial or publisher is missing
func New(cfg Config) (*Device, error) {
	if cfg.Serial == "" {
		return nil, ErrMissingSerial
	}
	if cfg.Publisher == nil {
		return nil, ErrMissingPublisher
	}

	d := &Device{
		serial:       cfg.Serial,
		rules:        cfg.Rules,
		topic:        cfg.Topic,
		pollInterval: cfg.PollInterval,
		stopGrace:    cfg.StopGrace,
		sendInterval: cfg.SendInterval,
		publisher:    cfg.Publisher,
		backend:      cfg.Backend,
		mirror:       cfg.Mirror,
		journal:      cfg.Journal,
		logger:       cfg.Logger,
		now:          cfg.Now,
		rng:          cfg.Rand,
		params:       make(map[string]any, len(cfg.Rules)),
		injected:     make(map[string]bool),
		powered:      true,
	}
	d.applyDefaults()

	for name, rule := range cfg.Rules {
		d.params[name] = Initial(rule, d.rng)
	}

	kind, capability := ResolveKind(cfg.KindHint, cfg.CapabilityHint, cfg.Serial)
	d.setKind(kind, capability)
	d.lastEstado = d.estadoLocked()

	return d, nil
}

func (d *Device) applyDefaults() {
	if d.topic == "" {
		d.topic = DefaultTopic
	}
	if d.sendInterval <= 0 {
		d.sendInterval = DefaultSendInterval
	}
	if d.pollInterval <= 0 {
		d.pollInterval = DefaultPollInterval
	}
	if d.stopGrace <= 0 {
		d.stopGrace = DefaultStopGrace
	}
	if d.logger == nil {
		d.logger = noopLogger{}
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.rng == nil {
		d.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // Simulation noise
	}
}

// setKind switches kind and capability, drops the previous capability's
// auxiliary parameters unless a rule declares them, and adds any missing
// ones for the new capability. Caller holds mu (or owns d exclusively).
func (d *Device) setKind(kind Kind, capability Capability) {
	next := behaviorFor(capability)
	if d.behavior != nil {
		keep := next.aux()
		for name := range d.behavior.aux() {
			if _, ok := keep[name]; ok {
				continue
			}
			if _, ok := d.rules[name]; ok {
				continue
			}
			delete(d.params, name)
			delete(d.injected, name)
		}
	}
	if capability != CapabilityDuration {
		d.irrigationEnd = time.Time{}
	}

	d.kind = kind
	d.capability = capability
	d.behavior = next
	for name, value := range d.behavior.aux() {
		if _, ok := d.params[name]; !ok {
			d.params[name] = value
		}
	}
}

// Serial returns the device's serial number.
func (d *Device) Serial() string {
	return d.serial
}

// Start launches the telemetry loop and, when a backend is configured,
// the reconciliation loop. Calling Start on a running device does nothing.
//
// Parameters:
//   - ctx: Cancelling it ends both loops; Stop must still be called
//     before the device can be started again
func (d *Device) Start(ctx context.Context) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if d.running {
		return
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	d.done, d.exited, d.running = done, exited, true

	go d.telemetryLoop(ctx, done, exited)
	if d.backend != nil {
		go d.pollLoop(ctx, done)
	}

	d.logger.Info("device started", "kind", d.Kind(), "capability", d.Capability())
}

// Stop signals both loops to exit and waits up to the stop grace period
// for the telemetry loop. The reconciliation loop exits once any request
// in flight returns. Calling Stop on a stopped device does nothing.
func (d *Device) Stop() {
	d.runMu.Lock()
	if !d.running {
		d.runMu.Unlock()
		return
	}
	close(d.done)
	exited := d.exited
	d.running = false
	d.runMu.Unlock()

	timer := time.NewTimer(d.stopGrace)
	defer timer.Stop()
	select {
	case <-exited:
	case <-timer.C:
		d.logger.Warn("telemetry loop did not exit within grace period", "grace", d.stopGrace)
	}

	d.logger.Info("device stopped")
}

// Running reports whether the loops have been started and not stopped.
func (d *Device) Running() bool {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	return d.running
}

// SetParameter overwrites one parameter.
//
// A numeric value outside the rule's [min,max] marks the parameter as
// injected: ticks leave it untouched until it is set back inside range.
//
// Returns:
//   - error: ErrUnknownParameter if the device has no such parameter
func (d *Device) SetParameter(name string, value any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.params[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	}

	injected := false
	if rule, ok := d.rules[name]; ok {
		if f, numeric := toFloat(value); numeric && !rule.InRange(f) {
			injected = true
		}
	}

	if injected {
		d.injected[name] = true
	} else {
		delete(d.injected, name)
	}
	d.params[name] = value
	return nil
}

// SetParameters overwrites every known parameter in values and ignores
// unknown names. Injection flags are left as they are.
func (d *Device) SetParameters(values map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for name, value := range values {
		if _, ok := d.params[name]; ok {
			d.params[name] = value
		}
	}
}

// PowerOn turns the device on, bypassing any schedule.
func (d *Device) PowerOn() {
	d.mu.Lock()
	d.powered = true
	d.mu.Unlock()
}

// PowerOff turns the device off, bypassing any schedule. Telemetry keeps
// publishing while off.
func (d *Device) PowerOff() {
	d.mu.Lock()
	d.powered = false
	d.mu.Unlock()
}

// Kind returns the device's current kind.
func (d *Device) Kind() Kind {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.kind
}

// Capability returns the device's current capability.
func (d *Device) Capability() Capability {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capability
}

// SendInterval returns the current telemetry period.
func (d *Device) SendInterval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sendInterval
}

// Snapshot is a point-in-time copy of a device's state.
type Snapshot struct {
	Serial          string
	Kind            Kind
	Capability      Capability
	Powered         bool
	Estado          string
	Parameters      map[string]any
	Injected        []string
	SendInterval    time.Duration
	PollInterval    time.Duration
	BackendID       backend.DeviceID
	IrrigationEnd   time.Time
	LastPushedPower *bool
	Running         bool
}

// Snapshot returns a copy of the device's state.
func (d *Device) Snapshot() Snapshot {
	running := d.Running()

	d.mu.Lock()
	defer d.mu.Unlock()

	s := Snapshot{
		Serial:        d.serial,
		Kind:          d.kind,
		Capability:    d.capability,
		Powered:       d.powered,
		Estado:        d.estadoLocked(),
		Parameters:    maps.Clone(d.params),
		SendInterval:  d.sendInterval,
		PollInterval:  d.pollInterval,
		BackendID:     d.backendID,
		IrrigationEnd: d.irrigationEnd,
		Running:       running,
	}
	for name := range d.injected {
		s.Injected = append(s.Injected, name)
	}
	if d.lastPushedPower != nil {
		v := *d.lastPushedPower
		s.LastPushedPower = &v
	}
	return s
}

// estadoLocked derives "activo"/"inactivo". Caller holds mu.
func (d *Device) estadoLocked() string {
	if d.behavior.inactive(d) {
		return EstadoInactivo
	}
	return EstadoActivo
}
