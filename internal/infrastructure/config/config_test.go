package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
simulator:
  send_interval: 7
  poll_interval: 2
  telemetry_topic: "test/estado"
fleet:
  - template: "luz"
    count: 3
  - template: "riego"
    serial: "RIEG00000001"
backend:
  url: "http://localhost:8000/api"
  timeout: 4
mqtt:
  broker:
    host: "broker.local"
    port: 1884
  qos: 1
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Simulator.SendInterval != 7 {
		t.Errorf("Simulator.SendInterval = %d, want 7", cfg.Simulator.SendInterval)
	}
	if cfg.Simulator.TelemetryTopic != "test/estado" {
		t.Errorf("Simulator.TelemetryTopic = %q, want %q", cfg.Simulator.TelemetryTopic, "test/estado")
	}
	if cfg.Simulator.CommandTopic != "dispositivos/comando" {
		t.Errorf("Simulator.CommandTopic = %q, want default", cfg.Simulator.CommandTopic)
	}
	if len(cfg.Fleet) != 2 || cfg.Fleet[0].Count != 3 || cfg.Fleet[1].Serial != "RIEG00000001" {
		t.Errorf("Fleet = %+v, want two entries", cfg.Fleet)
	}
	if cfg.Backend.URL != "http://localhost:8000/api" {
		t.Errorf("Backend.URL = %q", cfg.Backend.URL)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
simulator:
  send_interval: 0
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error for zero send_interval, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}, wantErr: false},
		{name: "zero send interval", mutate: func(c *Config) { c.Simulator.SendInterval = 0 }, wantErr: true},
		{name: "zero poll interval", mutate: func(c *Config) { c.Simulator.PollInterval = 0 }, wantErr: true},
		{name: "empty topic", mutate: func(c *Config) { c.Simulator.TelemetryTopic = "" }, wantErr: true},
		{name: "wildcard topic", mutate: func(c *Config) { c.Simulator.TelemetryTopic = "dispositivos/#" }, wantErr: true},
		{name: "fleet entry without template", mutate: func(c *Config) { c.Fleet = []FleetEntry{{Count: 1}} }, wantErr: true},
		{name: "relative backend url", mutate: func(c *Config) { c.Backend.URL = "localhost:8000" }, wantErr: true},
		{name: "valid backend url", mutate: func(c *Config) { c.Backend.URL = "https://api.example.com" }, wantErr: false},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid port", mutate: func(c *Config) { c.MQTT.Broker.Port = 70000 }, wantErr: true},
		{name: "influx without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
		{name: "influx enabled", mutate: func(c *Config) {
			c.InfluxDB.Enabled = true
			c.InfluxDB.URL = "http://influx:8086"
			c.InfluxDB.Bucket = "telemetry"
		}, wantErr: false},
		{name: "influx without measurement", mutate: func(c *Config) {
			c.InfluxDB.Enabled = true
			c.InfluxDB.URL = "http://influx:8086"
			c.InfluxDB.Bucket = "telemetry"
			c.InfluxDB.Measurements.Power = ""
		}, wantErr: true},
		{name: "influx zero batch", mutate: func(c *Config) {
			c.InfluxDB.Enabled = true
			c.InfluxDB.URL = "http://influx:8086"
			c.InfluxDB.Bucket = "telemetry"
			c.InfluxDB.BatchSize = 0
		}, wantErr: true},
		{name: "journal without path", mutate: func(c *Config) { c.Database.Enabled = true; c.Database.Path = "" }, wantErr: true},
		{name: "api enabled", mutate: func(c *Config) { c.API.Enabled = true }, wantErr: false},
		{name: "api bad port", mutate: func(c *Config) { c.API.Enabled = true; c.API.Port = 0 }, wantErr: true},
		{name: "api bad port while disabled", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: false},
		{name: "websocket zero ping", mutate: func(c *Config) { c.API.Enabled = true; c.WebSocket.PingInterval = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetDurations(t *testing.T) {
	cfg := defaultConfig()
	cfg.Simulator.SendInterval = 5
	cfg.Simulator.PollInterval = 3
	cfg.Backend.Timeout = 4
	cfg.Simulator.StopGraceMS = 250

	if got := cfg.GetSendInterval(); got != 5*time.Second {
		t.Errorf("GetSendInterval() = %v, want 5s", got)
	}
	if got := cfg.GetPollInterval(); got != 3*time.Second {
		t.Errorf("GetPollInterval() = %v, want 3s", got)
	}
	if got := cfg.GetBackendTimeout(); got != 4*time.Second {
		t.Errorf("GetBackendTimeout() = %v, want 4s", got)
	}
	if got := cfg.GetStopGrace(); got != 250*time.Millisecond {
		t.Errorf("GetStopGrace() = %v, want 250ms", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("DEVICESIM_BACKEND_URL", "http://backend:8000")
	t.Setenv("DEVICESIM_MQTT_HOST", "mqtt.example.com")
	t.Setenv("DEVICESIM_MQTT_PORT", "8883")
	t.Setenv("DEVICESIM_MQTT_USERNAME", "testuser")
	t.Setenv("DEVICESIM_MQTT_PASSWORD", "testpass")
	t.Setenv("DEVICESIM_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("DEVICESIM_DATABASE_PATH", "/custom/path.db")
	t.Setenv("DEVICESIM_LOG_LEVEL", "debug")
	t.Setenv("DEVICESIM_API_PORT", "9100")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 9100 {
		t.Errorf("API.Port = %d, want 9100", cfg.API.Port)
	}

	if cfg.Backend.URL != "http://backend:8000" {
		t.Errorf("Backend.URL = %q", cfg.Backend.URL)
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "testuser" || cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth = %+v", cfg.MQTT.Auth)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("DEVICESIM_MQTT_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want default 1883", cfg.MQTT.Broker.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Simulator.SendInterval != 5 {
		t.Errorf("defaultConfig SendInterval = %d, want 5", cfg.Simulator.SendInterval)
	}
	if cfg.Simulator.PollInterval != 3 {
		t.Errorf("defaultConfig PollInterval = %d, want 3", cfg.Simulator.PollInterval)
	}
	if cfg.Simulator.TelemetryTopic != "dispositivos/estado" {
		t.Errorf("defaultConfig TelemetryTopic = %q", cfg.Simulator.TelemetryTopic)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Backend.URL != "" {
		t.Errorf("defaultConfig Backend.URL = %q, want empty (reconciliation off)", cfg.Backend.URL)
	}
}
