package fleet

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/devicesim/internal/device"
)

// maxSerialAttempts bounds serial regeneration on collision.
const maxSerialAttempts = 16

// Logger defines the logging interface used by the Manager.
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

// Options are the collaborators and timings shared by every device the
// manager creates. Backend, Mirror and Journal are optional.
type Options struct {
	Publisher device.Publisher
	Backend   device.Backend
	Mirror    device.TelemetryMirror
	Journal   device.Journal

	// SendInterval applies when a template declares no intervalo_envio.
	SendInterval time.Duration
	PollInterval time.Duration
	StopGrace    time.Duration
	Topic        string

	// DeviceLogger returns the logger for one device, usually the
	// process logger with the serial attached.
	DeviceLogger func(serial string) device.Logger

	// Rand drives serial generation and device noise. Nil seeds from the
	// runtime.
	Rand *rand.Rand
}

// Manager owns the simulated devices, keyed by serial.
//
// Devices live until Remove; nothing is garbage-collected implicitly.
//
// All public methods are thread-safe.
type Manager struct {
	opts   Options
	logger Logger

	mu      sync.RWMutex
	devices map[string]*device.Device
	rng     *rand.Rand
}

// NewManager creates an empty fleet.
func NewManager(opts Options) *Manager {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // Serials and noise are not secrets
	}
	return &Manager{
		opts:    opts,
		logger:  noopLogger{},
		devices: make(map[string]*device.Device),
		rng:     rng,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// CreateFromTemplate creates devices from a template. Created devices are
// stopped.
//
// Parameters:
//   - t: Template supplying rules, kind hints and the initial send interval
//   - count: Number of devices with generated serials; ignored when serial is set
//   - serial: Custom serial; creates exactly one device
//
// Returns:
//   - []*device.Device: The created devices
//   - error: ErrDeviceExists, ErrInvalidCount or ErrSerialExhausted
func (m *Manager) CreateFromTemplate(t Template, count int, serial string) ([]*device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var serials []string
	if serial != "" {
		if _, exists := m.devices[serial]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDeviceExists, serial)
		}
		serials = []string{serial}
	} else {
		if count < 1 {
			return nil, ErrInvalidCount
		}
		for range count {
			s, err := m.uniqueSerialLocked(t.SerialPrefix, serials)
			if err != nil {
				return nil, err
			}
			serials = append(serials, s)
		}
	}

	created := make([]*device.Device, 0, len(serials))
	for _, s := range serials {
		d, err := device.New(m.deviceConfig(t, s))
		if err != nil {
			return nil, fmt.Errorf("creating device %s: %w", s, err)
		}
		created = append(created, d)
	}

	for _, d := range created {
		m.devices[d.Serial()] = d
		m.logger.Info("device created", "serial", d.Serial(), "template", t.Key,
			"kind", d.Kind(), "capability", d.Capability())
	}
	return created, nil
}

// uniqueSerialLocked generates a serial unused by the fleet and by pending.
func (m *Manager) uniqueSerialLocked(prefix string, pending []string) (string, error) {
	for range maxSerialAttempts {
		s := GenerateSerial(prefix, m.rng)
		if _, exists := m.devices[s]; !exists && !slices.Contains(pending, s) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: prefix %q", ErrSerialExhausted, prefix)
}

func (m *Manager) deviceConfig(t Template, serial string) device.Config {
	sendInterval := m.opts.SendInterval
	if v, ok := t.SendInterval(); ok {
		sendInterval = v
	}

	cfg := device.Config{
		Serial:         serial,
		Rules:          t.Parameters,
		KindHint:       t.Kind,
		CapabilityHint: t.Capability,
		SendInterval:   sendInterval,
		PollInterval:   m.opts.PollInterval,
		StopGrace:      m.opts.StopGrace,
		Topic:          m.opts.Topic,
		Publisher:      m.opts.Publisher,
		Backend:        m.opts.Backend,
		Mirror:         m.opts.Mirror,
		Journal:        m.opts.Journal,
		// Each device gets its own source so loops never share one.
		Rand: rand.New(rand.NewPCG(m.rng.Uint64(), m.rng.Uint64())), //nolint:gosec // Simulation noise
	}
	if m.opts.DeviceLogger != nil {
		cfg.Logger = m.opts.DeviceLogger(serial)
	}
	return cfg
}

// Get returns the device with the given serial.
func (m *Manager) Get(serial string) (*device.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.devices[serial]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, serial)
	}
	return d, nil
}

// List returns every device, sorted by serial.
func (m *Manager) List() []*device.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.SortedFunc(maps.Values(m.devices), func(a, b *device.Device) int {
		return cmp.Compare(a.Serial(), b.Serial())
	})
}

// Len returns the number of devices.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.devices)
}

// Remove stops a device and forgets it.
func (m *Manager) Remove(serial string) error {
	m.mu.Lock()
	d, ok := m.devices[serial]
	delete(m.devices, serial)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, serial)
	}

	d.Stop()
	m.logger.Info("device removed", "serial", serial)
	return nil
}

// StartAll starts every device that is not already running.
func (m *Manager) StartAll(ctx context.Context) {
	devices := m.List()
	for _, d := range devices {
		d.Start(ctx)
	}
	m.logger.Info("fleet started", "devices", len(devices))
}

// StopAll stops every device concurrently and waits for all of them.
func (m *Manager) StopAll() {
	devices := m.List()

	var wg sync.WaitGroup
	for _, d := range devices {
		wg.Go(d.Stop)
	}
	wg.Wait()

	m.logger.Info("fleet stopped", "devices", len(devices))
}
