package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/devicesim/internal/fleet"
	"github.com/nerrad567/devicesim/internal/infrastructure/config"
)

const lightTemplateJSON = `{
	"nombre": "Luz salon",
	"serial_prefix": "LUZ",
	"tipo": "luz",
	"parametros": {"consumo_w": {"tipo": "float", "min": 0, "max": 60}},
	"configuracion": {"intervalo_envio": 5}
}`

// writeTestConfig writes a config file pointing at a templates dir holding
// one light template.
func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	templatesDir := filepath.Join(dir, "templates")
	if err := os.Mkdir(templatesDir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(templatesDir, "luz.json"), []byte(lightTemplateJSON), 0o600); err != nil {
		t.Fatal(err)
	}

	content := "simulator:\n  templates_dir: " + templatesDir + "\n" + extra
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, runOptions{configPath: "/nonexistent/path/config.yaml"})
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Fatalf("run() error = %v, want a config loading error", err)
	}
}

func TestRun_NoDevices(t *testing.T) {
	path := writeTestConfig(t, "")

	err := run(context.Background(), runOptions{configPath: path})
	if err == nil || !strings.Contains(err.Error(), "no devices") {
		t.Fatalf("run() error = %v, want no devices error", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("DEVICESIM_CONFIG", "")
	if got := getConfigPath(""); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("DEVICESIM_CONFIG", "/etc/devicesim.yaml")
	if got := getConfigPath(""); got != "/etc/devicesim.yaml" {
		t.Errorf("getConfigPath() = %q, want env value", got)
	}
	if got := getConfigPath("flag.yaml"); got != "flag.yaml" {
		t.Errorf("getConfigPath(flag) = %q, want flag value", got)
	}
}

func TestFleetEntries(t *testing.T) {
	cfg := &config.Config{Fleet: []config.FleetEntry{{Template: "luz", Count: 3}}}

	if got := fleetEntries(cfg, runOptions{}); len(got) != 1 || got[0].Count != 3 {
		t.Errorf("fleetEntries() = %+v, want configured fleet", got)
	}

	got := fleetEntries(cfg, runOptions{template: "riego", count: 2, serial: "RIEG1"})
	if len(got) != 1 || got[0].Template != "riego" || got[0].Serial != "RIEG1" {
		t.Errorf("fleetEntries() = %+v, want command-line template", got)
	}
}

func TestCreateFleet(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "luz.json"), []byte(lightTemplateJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	templates, err := fleet.LoadTemplates(dir)
	if err != nil {
		t.Fatal(err)
	}

	m := fleet.NewManager(fleet.Options{Publisher: nopPublisher{}})
	entries := []config.FleetEntry{
		{Template: "luz", Count: 2},
		{Template: "luz"},
		{Template: "luz", Serial: "LUZFIXED1"},
	}
	if err := createFleet(m, templates, entries); err != nil {
		t.Fatalf("createFleet() error = %v", err)
	}
	if m.Len() != 4 {
		t.Errorf("fleet has %d devices, want 4", m.Len())
	}

	err = createFleet(m, templates, []config.FleetEntry{{Template: "nope"}})
	if !errors.Is(err, fleet.ErrTemplateNotFound) {
		t.Errorf("createFleet() error = %v, want ErrTemplateNotFound", err)
	}
}

func TestTemplatesCommand(t *testing.T) {
	path := writeTestConfig(t, "")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"templates", "--config", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	got := out.String()
	for _, want := range []string{"TEMPLATE", "luz", "Luz salon", "LUZ", "light", "binary"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "devicesim "+version) {
		t.Errorf("version output = %q", out.String())
	}
}

type nopPublisher struct{}

func (nopPublisher) PublishDefault(string, []byte) error { return nil }
