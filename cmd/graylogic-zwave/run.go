package main

import (
	"context"
	"errors"
	"fmt"

	_ "github.com/nerrad567/gray-logic-zwave/migrations"

	"github.com/nerrad567/gray-logic-zwave/internal/api"
	"github.com/nerrad567/gray-logic-zwave/internal/automation"
	"github.com/nerrad567/gray-logic-zwave/internal/device"
	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-zwave/internal/schedule"
	"github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

// run is the serve command, separated for testability.
//
// Startup order: config, logger, database, MQTT, InfluxDB, then the
// scheduling core (registry, dispatcher, router, modules), the gateway
// adapter, the ticker and finally the API. Shutdown runs in reverse via
// defers.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: Path to config.yaml
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error { //nolint:gocognit,gocyclo,funlen // linear startup sequence
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := logging.Default()
	log.Info("starting Gray Logic Z-Wave",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(cfg.Database)
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
		"client_id", cfg.MQTT.Broker.ClientID,
	)

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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Scheduling core
	registry := device.NewRegistry(nil)
	registry.SetLogger(log)

	dispatchRepo := automation.NewSQLiteRepository(db.DB)
	sinks := automation.MultiSink{
		automation.RepositorySink{Repo: dispatchRepo, Logger: log},
		automation.BroadcastSink{Hub: hub},
		automation.BusSink{Bus: mqttClient, Logger: log},
	}
	if influxClient != nil {
		sinks = append(sinks, automation.MetricsSink{Writer: influxClient})
	}

	// Sink writes run on their own goroutine, off the router loop.
	queued := automation.NewQueuedSink(sinks, cfg.Scheduler.SinkQueueSize, log)
	defer queued.Close()

	// Outstanding device commands outlive ctx so their outcome is still
	// recorded during shutdown; the gateway fails them when it stops.
	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	dispatcher := automation.NewDispatcher(dispatchCtx, registry, queued, log)
	defer func() {
		cancelDispatch()
		dispatcher.Wait()
	}()

	router := automation.NewRouter(registry, nil, dispatcher, cfg.Scheduler.InboxSize)
	router.SetLogger(log)
	router.SetBroadcaster(hub)
	if influxClient != nil {
		router.SetValueRecorder(influxClient)
	}

	if err := addModules(router, cfg.Scheduler.Modules, hub, log); err != nil {
		return err
	}

	policies, err := zwave.PoliciesFromConfig(cfg.ZWave.Listeners)
	if err != nil {
		return fmt.Errorf("zwave listeners: %w", err)
	}
	gateway, err := zwave.NewGateway(mqttClient, router, zwave.Options{
		GatewayID:      cfg.ZWave.GatewayID,
		CommandTimeout: cfg.ZWave.CommandTimeout,
		Policies:       policies,
		QoS:            byte(cfg.MQTT.QoS), // #nosec G115 -- validated 0..2
	})
	if err != nil {
		return fmt.Errorf("creating zwave gateway: %w", err)
	}
	gateway.SetLogger(log)
	registry.SetProvider(gateway)
	router.SetNodeLister(gateway)

	routerDone := make(chan error, 1)
	go func() {
		routerDone <- router.Run(ctx)
	}()

	if err := gateway.Start(); err != nil {
		return fmt.Errorf("starting zwave gateway: %w", err)
	}
	defer gateway.Stop()

	ticker := automation.NewTicker(cfg.Scheduler.TickInterval, cfg.Location(), router)
	ticker.SetLogger(log)
	go ticker.Run(ctx)

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log,
		Registry:   registry,
		Modules:    router,
		Network:    gateway,
		Dispatches: dispatchRepo,
		Hub:        hub,
		Version:    version,
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

	log.Info("initialisation complete, waiting for the gateway",
		"modules", len(router.Modules()),
		"gateway_id", cfg.ZWave.GatewayID,
		"timezone", cfg.Location().String(),
	)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case err := <-routerDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("event router: %w", err)
		}
	}

	log.Info("Gray Logic Z-Wave stopped")
	return nil
}

// addModules loads every enabled module's configuration and registers it
// with the router. A module that fails validation aborts startup.
func addModules(router *automation.Router, modules []config.ModuleConfig, hub automation.Broadcaster, log *logging.Logger) error {
	for _, m := range modules {
		if !m.IsEnabled() {
			log.Info("module disabled, skipping", "module", m.Name)
			continue
		}
		store, err := schedule.NewStore(schedule.FileSource{Path: m.File})
		if err != nil {
			return fmt.Errorf("loading module %s: %w", m.Name, err)
		}
		store.SetLogger(log.With("module", m.Name))
		module := automation.Module{Name: m.Name, Store: store, Values: valueHandlers(m, hub, log)}
		if err := router.AddModule(module); err != nil {
			return fmt.Errorf("adding module %s: %w", m.Name, err)
		}
		cur := store.Current()
		log.Info("module loaded",
			"module", m.Name,
			"file", m.File,
			"actuators", len(cur.Actuators),
			"normal_state", cur.NormalState,
			"motion", m.Motion != nil,
			"alarm", m.Alarm != nil,
		)
	}
	return nil
}

// valueHandlers builds the motion and alarm handlers a module asks for.
// It returns nil when the module reacts to no values.
func valueHandlers(m config.ModuleConfig, hub automation.Broadcaster, log *logging.Logger) automation.ValueHandler {
	var hs automation.ValueHandlers
	if m.Motion != nil {
		hs = append(hs, automation.MotionLight{
			Sensors:  nodeIDs(m.Motion.Sensors),
			Property: m.Motion.Property,
			Hold:     m.Motion.Hold,
		})
	}
	if m.Alarm != nil {
		opts := automation.DefaultAlarmOptions()
		opts.Sensors = nodeIDs(m.Alarm.Sensors)
		if m.Alarm.Property != "" {
			opts.Property = m.Alarm.Property
		}
		if m.Alarm.Raised != nil {
			opts.Raised = float64(*m.Alarm.Raised)
		}
		if m.Alarm.Cleared != nil {
			opts.Cleared = float64(*m.Alarm.Cleared)
		}
		hs = append(hs, automation.NewAlarmWatch(opts, hub, log.With("module", m.Name)))
	}
	if len(hs) == 0 {
		return nil
	}
	return hs
}

func nodeIDs(ids []int) []device.NodeID {
	out := make([]device.NodeID, 0, len(ids))
	for _, id := range ids {
		out = append(out, device.NodeID(id))
	}
	return out
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
