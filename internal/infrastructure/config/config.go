package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the device simulator.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Simulator SimulatorConfig `yaml:"simulator"`
	Fleet     []FleetEntry    `yaml:"fleet"`
	Backend   BackendConfig   `yaml:"backend"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SimulatorConfig contains the per-device loop settings shared by the whole fleet.
type SimulatorConfig struct {
	// SendInterval is the default telemetry period in seconds.
	// Templates and remote configuration may override it per device.
	SendInterval int `yaml:"send_interval"`

	// PollInterval is the remote configuration poll period in seconds.
	PollInterval int `yaml:"poll_interval"`

	// TelemetryTopic is the MQTT topic every device publishes its state to.
	TelemetryTopic string `yaml:"telemetry_topic"`

	// CommandTopic is the prefix for live per-device commands.
	// Devices listen on {CommandTopic}/{serial}. Empty disables commands.
	CommandTopic string `yaml:"command_topic"`

	// TemplatesDir is the directory holding device template JSON files.
	TemplatesDir string `yaml:"templates_dir"`

	// StopGraceMS bounds how long Stop waits for a telemetry loop to exit.
	StopGraceMS int `yaml:"stop_grace_ms"`
}

// FleetEntry describes devices to create from a template at start-up.
type FleetEntry struct {
	Template string `yaml:"template"`
	Count    int    `yaml:"count"`
	Serial   string `yaml:"serial"`
}

// BackendConfig contains the device backend connection settings.
// An empty URL disables remote configuration reconciliation.
type BackendConfig struct {
	URL     string `yaml:"url"`
	Timeout int    `yaml:"timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains the optional telemetry mirror settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`

	// Tags are added to every point, e.g. {"site": "lab"}.
	Tags         map[string]string        `yaml:"tags"`
	Measurements InfluxMeasurementsConfig `yaml:"measurements"`
}

// InfluxMeasurementsConfig names the measurements the mirror writes.
type InfluxMeasurementsConfig struct {
	Telemetry string `yaml:"telemetry"`
	Power     string `yaml:"power"`
}

// DatabaseConfig contains the optional SQLite state-transition journal settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains the local control API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
// An empty AllowedOrigins list allows every origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains live telemetry stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. .env file, if present in the working directory (fills unset variables)
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: DEVICESIM_SECTION_KEY
// For example: DEVICESIM_BACKEND_URL, DEVICESIM_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// A missing .env is the normal case outside development.
	_ = godotenv.Load() //nolint:errcheck // optional file

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Simulator: SimulatorConfig{
			SendInterval:   5,
			PollInterval:   3,
			TelemetryTopic: "dispositivos/estado",
			CommandTopic:   "dispositivos/comando",
			TemplatesDir:   "./templates",
			StopGraceMS:    1000,
		},
		Backend: BackendConfig{
			Timeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
			Measurements: InfluxMeasurementsConfig{
				Telemetry: "device_telemetry",
				Power:     "device_power",
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/devicesim.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DEVICESIM_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Backend
	if v := os.Getenv("DEVICESIM_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}

	// MQTT
	if v := os.Getenv("DEVICESIM_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DEVICESIM_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("DEVICESIM_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DEVICESIM_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Simulator
	if v := os.Getenv("DEVICESIM_TEMPLATES_DIR"); v != "" {
		cfg.Simulator.TemplatesDir = v
	}

	// InfluxDB
	if v := os.Getenv("DEVICESIM_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Database
	if v := os.Getenv("DEVICESIM_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("DEVICESIM_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Logging
	if v := os.Getenv("DEVICESIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Simulator validation
	if c.Simulator.SendInterval < 1 {
		errs = append(errs, "simulator.send_interval must be at least 1 second")
	}
	if c.Simulator.PollInterval < 1 {
		errs = append(errs, "simulator.poll_interval must be at least 1 second")
	}
	if c.Simulator.TelemetryTopic == "" {
		errs = append(errs, "simulator.telemetry_topic is required")
	}
	if strings.ContainsAny(c.Simulator.TelemetryTopic, "+#") {
		errs = append(errs, "simulator.telemetry_topic must not contain wildcards")
	}

	for i, entry := range c.Fleet {
		if entry.Template == "" {
			errs = append(errs, fmt.Sprintf("fleet[%d].template is required", i))
		}
		if entry.Count < 0 {
			errs = append(errs, fmt.Sprintf("fleet[%d].count must not be negative", i))
		}
	}

	// Backend validation
	if c.Backend.URL != "" {
		u, err := url.Parse(c.Backend.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, "backend.url must be an absolute http(s) URL")
		}
	}
	if c.Backend.Timeout < 1 {
		errs = append(errs, "backend.timeout must be at least 1 second")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	// Optional sinks
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
		}
		if c.InfluxDB.Measurements.Telemetry == "" || c.InfluxDB.Measurements.Power == "" {
			errs = append(errs, "influxdb.measurements.telemetry and influxdb.measurements.power are required")
		}
		if c.InfluxDB.BatchSize < 1 || c.InfluxDB.FlushInterval < 1 {
			errs = append(errs, "influxdb.batch_size and influxdb.flush_interval must be at least 1")
		}
	}
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the journal is enabled")
	}

	// API validation
	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
		if c.WebSocket.PingInterval < 1 || c.WebSocket.PongTimeout < 1 {
			errs = append(errs, "websocket.ping_interval and websocket.pong_timeout must be at least 1 second")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetSendInterval returns the default telemetry period as a Duration.
func (c *Config) GetSendInterval() time.Duration {
	return time.Duration(c.Simulator.SendInterval) * time.Second
}

// GetPollInterval returns the remote configuration poll period as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Simulator.PollInterval) * time.Second
}

// GetBackendTimeout returns the per-request backend timeout as a Duration.
func (c *Config) GetBackendTimeout() time.Duration {
	return time.Duration(c.Backend.Timeout) * time.Second
}

// GetStopGrace returns how long Stop waits for a telemetry loop to exit.
func (c *Config) GetStopGrace() time.Duration {
	return time.Duration(c.Simulator.StopGraceMS) * time.Millisecond
}
