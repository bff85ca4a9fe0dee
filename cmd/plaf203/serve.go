package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/plaf203-core/internal/api"
	"github.com/nerrad567/plaf203-core/internal/infrastructure/config"
	"github.com/nerrad567/plaf203-core/internal/infrastructure/database"
	"github.com/nerrad567/plaf203-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/plaf203-core/internal/infrastructure/logging"
	"github.com/nerrad567/plaf203-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/plaf203-core/internal/protocol"
	"github.com/nerrad567/plaf203-core/internal/router"
	"github.com/nerrad567/plaf203-core/internal/session"
	"github.com/nerrad567/plaf203-core/internal/status"
	"github.com/nerrad567/plaf203-core/internal/storage"
	"github.com/nerrad567/plaf203-core/internal/telemetry"
)

// pruneInterval is how often old feed log entries are removed.
const pruneInterval = 24 * time.Hour

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting PLAF203 core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

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

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("resolving device timezone: %w", err)
	}

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	store := storage.NewStore(db)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT, cfg.Device.Serial)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
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

	codec := protocol.NewCodec(protocol.WithLocation(loc))
	topics := router.Topics{Product: cfg.Device.Product, Serial: cfg.Device.Serial}
	rtr := router.New(&mqttTransport{client: mqttClient}, codec, topics,
		router.WithQoS(byte(cfg.Protocol.QoS)),
		router.WithLogger(log.Component("router")),
	)

	// Listeners are wired before the engine exists; the reporter reads the
	// engine's status lazily.
	var engine *session.Engine
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(ctx)
	listeners := session.Fanout{
		storage.NewFeedRecorder(store, log.Component("feed_log")),
		hub,
	}
	if influxClient != nil {
		listeners = append(listeners, telemetry.NewRecorder(influxClient))
	}
	var reporter *status.Reporter
	if cfg.Status.Enabled {
		reporter = status.NewReporter(status.Config{
			Serial:   cfg.Device.Serial,
			Version:  version,
			Interval: cfg.StatusInterval(),
			QoS:      byte(cfg.MQTT.QoS),
		}, mqttClient, statusFunc(func() session.Status { return engine.Status() }), log.Component("status"))
		listeners = append(listeners, reporter)
	}

	engine = session.New(session.Config{
		Serial:          cfg.Device.Serial,
		BindID:          cfg.BindID(),
		CameraID:        cfg.Device.CameraID,
		WatchdogTimeout: cfg.WatchdogTimeout(),
		DriftThreshold:  cfg.DriftThreshold(),
	}, rtr, store, listeners, log.Component("session"))

	if err := engine.Register(rtr); err != nil {
		return fmt.Errorf("registering handlers: %w", err)
	}
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer engine.Stop()

	if err := rtr.Start(ctx); err != nil {
		return fmt.Errorf("starting router: %w", err)
	}
	defer func() {
		if stopErr := rtr.Stop(); stopErr != nil {
			log.Error("error stopping router", "error", stopErr)
		}
	}()
	log.Info("listening for feeder",
		"serial", cfg.Device.Serial,
		"product", cfg.Device.Product,
		"timezone", loc.String(),
	)

	if reporter != nil {
		reporter.Start(ctx)
		defer reporter.Stop()
	}

	if cfg.API.Enabled {
		apiServer, apiErr := startAPIServer(ctx, cfg, log, engine, store, db, mqttClient, influxClient, hub)
		if apiErr != nil {
			return apiErr
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if retention := cfg.FeedLogRetention(); retention > 0 {
		go pruneFeedLog(ctx, store, retention, log)
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, status reporter, router,
	// session, InfluxDB, MQTT, database.

	log.Info("PLAF203 core stopped")
	return nil
}

// openDatabase opens the SQLite database and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Database.Path)

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete")
	return db, nil
}

// startAPIServer builds the HTTP API around the engine and starts listening.
func startAPIServer(
	ctx context.Context,
	cfg *config.Config,
	log *logging.Logger,
	engine *session.Engine,
	store *storage.Store,
	db *database.DB,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
	hub *api.Hub,
) (*api.Server, error) {
	checks := map[string]api.HealthCheck{
		"database": db.HealthCheck,
		"mqtt":     mqttClient.HealthCheck,
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient.HealthCheck
	}

	srv, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log.Component("api"),
		Feeder:  engine,
		FeedLog: store,
		MQTT:    mqttClient,
		DBStats: db.Stats,
		Checks:  checks,
		Hub:     hub,
		Version: version,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting API server: %w", err)
	}
	return srv, nil
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

// pruneFeedLog removes feed log entries older than retention, once at
// startup and then daily, until ctx is cancelled.
func pruneFeedLog(ctx context.Context, store *storage.Store, retention time.Duration, log *logging.Logger) {
	prune := func() {
		removed, err := store.PruneFeeds(ctx, time.Now().Add(-retention))
		if err != nil {
			log.Warn("pruning feed log failed", "error", err)
			return
		}
		if removed > 0 {
			log.Info("feed log pruned", "removed", removed, "retention", retention)
		}
	}

	prune()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// mqttTransport adapts the infrastructure MQTT client to router.Transport.
// The only difference is the handler type: the client takes its named
// mqtt.MessageHandler, the router passes a plain func.
type mqttTransport struct {
	client *mqtt.Client
}

// Subscribe implements router.Transport.
func (t *mqttTransport) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	return t.client.Subscribe(topic, qos, handler)
}

// Publish implements router.Transport.
func (t *mqttTransport) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return t.client.Publish(topic, payload, qos, retained)
}

// Unsubscribe implements router.Transport.
func (t *mqttTransport) Unsubscribe(topics ...string) error {
	return t.client.Unsubscribe(topics...)
}

// statusFunc adapts a function to status.Source.
type statusFunc func() session.Status

func (f statusFunc) Status() session.Status { return f() }
