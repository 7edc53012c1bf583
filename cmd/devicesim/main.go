// devicesim simulates a fleet of IoT devices.
//
// Every device publishes telemetry over MQTT and reconciles its power
// state and schedules against a configuration document held by the
// device backend. See configs/config.yaml for the available settings and
// templates/ for device templates.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/devicesim/migrations"

	"github.com/nerrad567/devicesim/internal/api"
	"github.com/nerrad567/devicesim/internal/backend"
	"github.com/nerrad567/devicesim/internal/device"
	"github.com/nerrad567/devicesim/internal/fleet"
	"github.com/nerrad567/devicesim/internal/infrastructure/config"
	"github.com/nerrad567/devicesim/internal/infrastructure/database"
	"github.com/nerrad567/devicesim/internal/infrastructure/influxdb"
	"github.com/nerrad567/devicesim/internal/infrastructure/logging"
	"github.com/nerrad567/devicesim/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// runOptions are the command-line overrides for the run command.
type runOptions struct {
	configPath string
	template   string
	count      int
	serial     string
}

func main() {
	// Cancel on Ctrl+C and SIGTERM for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &runOptions{}

	root := &cobra.Command{
		Use:           "devicesim",
		Short:         "IoT device fleet simulator",
		Long:          "Simulates IoT devices that publish telemetry over MQTT and follow remote configuration.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file (default $DEVICESIM_CONFIG or "+defaultConfigPath+")")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Create the fleet and simulate until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), *opts)
		},
	}
	runCmd.Flags().StringVarP(&opts.template, "template", "t", "", "Template to create devices from (replaces the configured fleet)")
	runCmd.Flags().IntVarP(&opts.count, "count", "n", 1, "Number of devices to create from --template")
	runCmd.Flags().StringVarP(&opts.serial, "serial", "s", "", "Custom serial; creates exactly one device from --template")

	templatesCmd := &cobra.Command{
		Use:   "templates",
		Short: "List device templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listTemplates(cmd, *opts)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "devicesim %s (commit %s, built %s)\n", version, commit, date)
		},
	}

	root.AddCommand(runCmd, templatesCmd, versionCmd)
	return root
}

// run is the simulator itself, separated from the command tree for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Command-line overrides
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts runOptions) error {
	log := logging.Default()
	log.Info("starting devicesim",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath(opts.configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	templates, err := fleet.LoadTemplates(cfg.Simulator.TemplatesDir)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	log.Info("templates loaded", "dir", cfg.Simulator.TemplatesDir, "count", len(templates))

	entries := fleetEntries(cfg, opts)
	if len(entries) == 0 {
		return fmt.Errorf("no devices to simulate: configure fleet entries or pass --template")
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", mqttClient.ClientID(),
	)

	fleetOpts := fleet.Options{
		Publisher:    mqttClient,
		SendInterval: cfg.GetSendInterval(),
		PollInterval: cfg.GetPollInterval(),
		StopGrace:    cfg.GetStopGrace(),
		Topic:        cfg.Simulator.TelemetryTopic,
		DeviceLogger: func(serial string) device.Logger {
			return log.With("serial", serial)
		},
	}

	// Telemetry mirror (optional)
	var mirror *influxdb.Mirror
	if cfg.InfluxDB.Enabled {
		mirror, err = influxdb.Open(ctx, cfg.InfluxDB, func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := mirror.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		fleetOpts.Mirror = mirror
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket,
			"measurement", cfg.InfluxDB.Measurements.Telemetry)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Live telemetry stream for the control API (optional)
	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log)
		go hub.Run(ctx)
		fleetOpts.Publisher = hub.Tee(mqttClient)
	}

	// Transition journal (optional)
	var (
		db      *database.DB
		journal *device.SQLiteJournal
	)
	if cfg.Database.Enabled {
		db, err = openJournal(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		journal = device.NewSQLiteJournal(db.DB)
		fleetOpts.Journal = journal
		log.Info("transition journal enabled", "path", db.Path())
	}

	// Backend (optional; without it devices only publish telemetry)
	if cfg.Backend.URL != "" {
		fleetOpts.Backend = backend.NewClient(cfg.Backend.URL, cfg.GetBackendTimeout())
		log.Info("backend configured", "url", cfg.Backend.URL)
	} else {
		log.Warn("no backend configured, remote configuration disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, mirror); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	manager := fleet.NewManager(fleetOpts)
	manager.SetLogger(log)
	if err := createFleet(manager, templates, entries); err != nil {
		return err
	}

	var commands *fleet.CommandHandler
	if cfg.Simulator.CommandTopic != "" {
		commands = fleet.NewCommandHandler(ctx, manager, cfg.Simulator.CommandTopic)
		commands.SetLogger(log)
		if err := commands.Subscribe(mqttClient); err != nil {
			return fmt.Errorf("subscribing to commands: %w", err)
		}
	}

	if cfg.API.Enabled {
		apiServer, err := startAPI(ctx, cfg, log, manager, templates, journal, hub)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	manager.StartAll(ctx)
	log.Info("devicesim running", "devices", manager.Len())

	<-ctx.Done()
	log.Info("shutdown signal received, stopping devices")

	if commands != nil {
		if err := commands.Unsubscribe(mqttClient); err != nil {
			log.Warn("error unsubscribing from commands", "error", err)
		}
	}

	manager.StopAll()

	// Deferred Close() calls run in reverse order:
	// 1. API server (if enabled)
	// 2. Database (if enabled)
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	log.Info("devicesim stopped")
	return nil
}

// getConfigPath returns the configuration file path: the flag value, else
// DEVICESIM_CONFIG, else the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("DEVICESIM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// fleetEntries returns the devices to create: the command-line template
// when given, otherwise the configured fleet.
func fleetEntries(cfg *config.Config, opts runOptions) []config.FleetEntry {
	if opts.template != "" {
		return []config.FleetEntry{{Template: opts.template, Count: opts.count, Serial: opts.serial}}
	}
	return cfg.Fleet
}

// createFleet creates every entry's devices.
func createFleet(manager *fleet.Manager, templates fleet.Templates, entries []config.FleetEntry) error {
	for _, entry := range entries {
		tpl, err := templates.Get(entry.Template)
		if err != nil {
			return fmt.Errorf("creating fleet: %w", err)
		}
		count := entry.Count
		if count == 0 {
			count = 1
		}
		if _, err := manager.CreateFromTemplate(tpl, count, entry.Serial); err != nil {
			return fmt.Errorf("creating devices from %s: %w", entry.Template, err)
		}
	}
	return nil
}

// startAPI creates and starts the local control API.
func startAPI(ctx context.Context, cfg *config.Config, log *logging.Logger, manager *fleet.Manager,
	templates fleet.Templates, journal *device.SQLiteJournal, hub *api.Hub,
) (*api.Server, error) {
	deps := api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Logger:    log,
		Manager:   manager,
		Templates: templates,
		Hub:       hub,
		Version:   version,
	}
	// A nil *SQLiteJournal must not become a non-nil interface.
	if journal != nil {
		deps.History = journal
	}

	server, err := api.New(deps)
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting API server: %w", err)
	}
	return server, nil
}

// openJournal opens and migrates the transition journal database.
func openJournal(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Journal database to check (may be nil if disabled)
//   - mqttClient: MQTT client to check
//   - mirror: InfluxDB mirror to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, mirror *influxdb.Mirror) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if mirror != nil {
		if err := mirror.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// listTemplates prints the templates found in the configured directory.
func listTemplates(cmd *cobra.Command, opts runOptions) error {
	cfg, err := config.Load(getConfigPath(opts.configPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	templates, err := fleet.LoadTemplates(cfg.Simulator.TemplatesDir)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(templates) == 0 {
		fmt.Fprintf(out, "No templates in %s\n", cfg.Simulator.TemplatesDir)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TEMPLATE\tNAME\tPREFIX\tKIND\tCAPABILITY\tPARAMETERS")
	fmt.Fprintln(w, "--------\t----\t------\t----\t----------\t----------")
	for _, key := range templates.Names() {
		t := templates[key]
		kind, capability := device.ResolveKind(t.Kind, t.Capability, t.SerialPrefix)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", key, t.Name, t.SerialPrefix, kind, capability, len(t.Parameters))
	}
	return w.Flush()
}
