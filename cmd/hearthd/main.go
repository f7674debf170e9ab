// Hearth - Home Automation Rule Engine
//
// hearthd is the main entry point for the Hearth daemon. It wires the
// automation store, trigger scheduler, condition evaluator, and action
// executor to MQTT, SQLite, and the HTTP/WebSocket API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/hearth-home/hearth-core/migrations"

	"github.com/hearth-home/hearth-core/internal/api"
	"github.com/hearth-home/hearth-core/internal/automation"
	"github.com/hearth-home/hearth-core/internal/device"
	"github.com/hearth-home/hearth-core/internal/infrastructure/config"
	"github.com/hearth-home/hearth-core/internal/infrastructure/database"
	"github.com/hearth-home/hearth-core/internal/infrastructure/influxdb"
	"github.com/hearth-home/hearth-core/internal/infrastructure/logging"
	"github.com/hearth-home/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearth-home/hearth-core/internal/tools"
	"github.com/hearth-home/hearth-core/internal/transport"
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

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error lets main handle exit codes.
func run(ctx context.Context) error { //nolint:gocognit // Wiring: each component follows the same open/defer-close step
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Hearth",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database and run migrations
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Device registry from the declarative device file
	registry := device.NewRegistry(log)
	if _, statErr := os.Stat(cfg.Devices.Path); statErr == nil {
		if loadErr := registry.LoadFile(cfg.Devices.Path); loadErr != nil {
			return fmt.Errorf("loading device file: %w", loadErr)
		}
		log.Info("device registry loaded", "path", cfg.Devices.Path, "devices", len(registry.List()))
	} else {
		log.Warn("device file not found, starting with empty registry", "path", cfg.Devices.Path)
	}

	// Automation store (creates the JSON file on first run)
	store, err := automation.NewStore(cfg.Automations.Path, log)
	if err != nil {
		return fmt.Errorf("opening automation store: %w", err)
	}
	log.Info("automation store loaded", "path", cfg.Automations.Path, "automations", len(store.All()))

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
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// External tool runner (optional)
	var invoker automation.ToolInvoker
	if cfg.Tools.Enabled {
		runner := tools.NewMCPRunner(tools.Config{
			Command: cfg.Tools.Command,
			Args:    cfg.Tools.Args,
			Timeout: cfg.GetToolTimeout(),
		}, log)
		defer func() {
			if closeErr := runner.Close(); closeErr != nil {
				log.Error("error closing tool runner", "error", closeErr)
			}
		}()
		invoker = runner
		log.Info("tool runner configured", "command", cfg.Tools.Command)
	} else {
		log.Info("tool runner disabled")
	}

	// The transport bridge and the engine depend on each other: the
	// bridge feeds events to the engine, the engine sends commands
	// through the bridge. The sink adapter breaks the construction cycle.
	sink := &engineSink{}

	bridge := transport.NewBridge(mqttClient, sink, registry, transport.Config{
		StatePattern:     cfg.Transport.StatePattern,
		CommandPrefix:    cfg.Transport.CommandPrefix,
		RawSubscriptions: cfg.Transport.RawSubscriptions,
		QoS:              byte(cfg.MQTT.QoS), // #nosec G115 -- validated 0..2 by config.Validate
	}, log)

	// Engine: evaluator, executor, scheduler, firing history
	repo := automation.NewSQLiteRepository(db.DB)
	evaluator := automation.NewEvaluator(registry, registry, log)
	executor := automation.NewExecutor(bridge, invoker, evaluator, registry, log)

	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	engine := automation.NewEngine(store, evaluator, executor, registry, hub, repo, log)
	if influxClient != nil {
		engine.SetTelemetry(influxClient)
	}
	sink.engine = engine

	engine.Start(ctx)
	defer func() {
		log.Info("stopping engine")
		engine.Stop()
	}()
	log.Info("automation engine started")

	// Subscribe to device state and raw topics
	if err := bridge.Start(); err != nil {
		return fmt.Errorf("starting transport bridge: %w", err)
	}
	log.Info("transport bridge started",
		"state_pattern", cfg.Transport.StatePattern,
		"raw_subscriptions", len(cfg.Transport.RawSubscriptions),
	)

	// HTTP API and WebSocket server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log,
		Store:       store,
		Registry:    registry,
		Engine:      engine,
		Repo:        repo,
		DB:          db,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, engine, tool runner, InfluxDB, MQTT, database.

	log.Info("Hearth stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses the HEARTH_CONFIG environment variable if set.
func getConfigPath() string {
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.HealthCheck(checkCtx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(checkCtx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(checkCtx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// engineSink forwards transport events to the engine once it exists.
// The engine field is set before bridge.Start(), so no event can arrive
// while it is still nil; the guards cover MQTT auto-reconnect races
// during shutdown.
type engineSink struct {
	engine *automation.Engine
}

// HandleStateChange implements transport.EventSink.
func (s *engineSink) HandleStateChange(deviceID string, newState, previous map[string]any) {
	if s.engine != nil {
		s.engine.HandleStateChange(deviceID, newState, previous)
	}
}

// HandleRawMessage implements transport.EventSink.
func (s *engineSink) HandleRawMessage(topic, payload string) {
	if s.engine != nil {
		s.engine.HandleRawMessage(topic, payload)
	}
}
