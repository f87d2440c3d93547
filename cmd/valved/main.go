// Gray Logic Valve - Home Assistant MQTT valve daemon
//
// valved exposes one valve as a Home Assistant MQTT entity. It announces the
// valve through MQTT discovery, drives the actuator on commands from Home
// Assistant, and republishes the last known state after every reconnect.
//
// Usage:
//
//	valved                          run the daemon
//	valved token <subject> <scope>  print an API token (scope: valve:read or valve:control)
//	valved migrate <status|down>    list schema migrations, or roll back the latest
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-valve/migrations"

	"github.com/nerrad567/gray-logic-valve/internal/actuator"
	"github.com/nerrad567/gray-logic-valve/internal/api"
	"github.com/nerrad567/gray-logic-valve/internal/auth"
	"github.com/nerrad567/gray-logic-valve/internal/controller"
	"github.com/nerrad567/gray-logic-valve/internal/hass"
	"github.com/nerrad567/gray-logic-valve/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-valve/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-valve/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-valve/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-valve/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-valve/internal/metrics"
	"github.com/nerrad567/gray-logic-valve/internal/snapshot"
	"github.com/nerrad567/gray-logic-valve/internal/valve"
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

	if len(os.Args) > 1 {
		var err error
		switch os.Args[1] {
		case "token":
			err = runToken(os.Stdout, os.Args[2:])
		case "migrate":
			err = runMigrate(ctx, os.Stdout, os.Args[2:])
		default:
			err = fmt.Errorf("unknown command %q", os.Args[1])
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the daemon, separated from main for testability. It returns nil on
// a clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Valve",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"device_id", cfg.Device.ID,
		"unique_id", cfg.Valve.UniqueID,
	)

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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	store := snapshot.NewRepository(db.DB, cfg.Database.HistoryLimit)

	// A nil client is a valid no-op telemetry sink.
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	m := metrics.New()

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(hubCtx)

	ns := hass.Namespace{
		DiscoveryPrefix: cfg.Discovery.Prefix,
		DataPrefix:      cfg.Discovery.DataPrefix,
		DeviceID:        cfg.Device.ID,
	}
	node := hass.NewNode(nil, hass.NodeConfig{
		Namespace:         ns,
		Device:            deviceInfo(cfg.Device),
		QoS:               byte(cfg.MQTT.QoS), // #nosec G115 -- validated 0..2
		ExtendedUniqueIDs: cfg.Discovery.ExtendedUniqueIDs,
	})
	node.SetLogger(log.Component("hass"))

	v := newValve(node, cfg.Valve)
	v.SetLogger(log.Component("valve"))

	act, err := actuator.New(cfg.Valve.Actuator)
	if err != nil {
		return fmt.Errorf("creating actuator: %w", err)
	}
	defer func() {
		if releaseErr := act.Release(); releaseErr != nil {
			log.Error("error releasing actuator", "error", releaseErr)
		}
	}()
	log.Info("actuator ready", "type", cfg.Valve.Actuator.Type)

	ctrl, err := controller.New(controller.Deps{
		Node:      node,
		Valve:     v,
		Actuator:  act,
		Store:     store,
		Telemetry: influxClient,
		Metrics:   m,
		Events:    hub,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}
	log.Info("valve registered", "unique_id", v.UniqueID(), "entities", node.EntityCount())
	if restoreErr := ctrl.Restore(ctx); restoreErr != nil {
		log.Warn("restoring valve snapshot failed", "error", restoreErr)
	}

	mqttClient := mqtt.New(cfg.MQTT,
		mqtt.WithLastWill(ns.AvailabilityTopic(), hass.AvailabilityOffline),
		mqtt.WithLogger(log.Component("mqtt")),
	)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT connected, announcing valve")
		ctrl.HandleConnect()
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	node.SetBroker(mqttClient)

	if connectErr := mqttClient.Connect(); connectErr != nil {
		return fmt.Errorf("connecting to MQTT: %w", connectErr)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	if cfg.API.Enabled {
		checks := map[string]api.HealthChecker{
			"database": db,
			"mqtt":     mqttClient,
		}
		if influxClient != nil {
			checks["influxdb"] = influxClient
		}

		srv, srvErr := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log,
			Valve:   ctrl,
			History: store,
			Metrics: m.Handler(),
			Checks:  checks,
			Hub:     hub,
			Version: version,
		})
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred closes run in reverse: API, MQTT (publishes offline), actuator,
	// hub, InfluxDB, database.
	log.Info("Gray Logic Valve stopped")
	return nil
}

// getConfigPath returns VALVE_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("VALVE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func deviceInfo(d config.DeviceConfig) hass.DeviceInfo {
	return hass.DeviceInfo{
		Identifiers:      d.ID,
		Name:             d.Name,
		Manufacturer:     d.Manufacturer,
		Model:            d.Model,
		SoftwareVersion:  d.SWVersion,
		ConfigurationURL: d.ConfigurationURL,
	}
}

// newValve builds the entity from configuration. Thresholds are validated
// to fit int16 by config.Validate.
func newValve(bus hass.Bus, cfg config.ValveConfig) *valve.Valve {
	v := valve.New(bus, cfg.UniqueID, valve.Features{
		PositionReporting: cfg.PositionReporting,
		StopSupport:       cfg.StopSupport,
	})
	v.SetName(cfg.Name)
	v.SetObjectID(cfg.ObjectID)
	v.SetDeviceClass(cfg.DeviceClass)
	v.SetIcon(cfg.Icon)
	v.SetRetain(cfg.Retain)
	v.SetOptimistic(cfg.Optimistic)
	v.SetPositionOpen(int16(cfg.PositionOpen))     // #nosec G115 -- validated range
	v.SetPositionClosed(int16(cfg.PositionClosed)) // #nosec G115 -- validated range
	return v
}

// runToken prints a signed API token using the configured secret.
func runToken(w io.Writer, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: valved token <subject> <%s|%s>", auth.ScopeRead, auth.ScopeControl)
	}
	scope := auth.Scope(args[1])
	if scope != auth.ScopeRead && scope != auth.ScopeControl {
		return fmt.Errorf("unknown scope %q", args[1])
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	token, err := auth.GenerateToken(args[0], scope, cfg.API.JWTSecret, auth.DefaultTTL)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

// runMigrate reports the schema state of the configured database. "down"
// rolls back the most recent migration first.
func runMigrate(ctx context.Context, w io.Writer, args []string) error {
	if len(args) != 1 || (args[0] != "status" && args[0] != "down") {
		return errors.New("usage: valved migrate <status|down>")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-mostly command, nothing to flush

	if args[0] == "down" {
		if downErr := db.MigrateDown(ctx); downErr != nil {
			return fmt.Errorf("rolling back migration: %w", downErr)
		}
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	for _, r := range applied {
		fmt.Fprintf(w, "applied  %s  %s\n", r.Version, r.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(w, "pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}

// Compile-time checks that infrastructure satisfies the API's health interface.
var (
	_ api.HealthChecker = (*database.DB)(nil)
	_ api.HealthChecker = (*mqtt.Client)(nil)
	_ api.HealthChecker = (*influxdb.Client)(nil)
)
