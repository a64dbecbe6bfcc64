// Gray Logic HTTP - the hub's HTTP front door
//
// This is the main entry point for the front door service. It serves the
// hub's API views behind shared-secret authentication, trusted networks and
// IP banning, and follows the hub's start/stop lifecycle.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/gray-logic-http/migrations"

	"github.com/nerrad567/gray-logic-http/internal/api"
	"github.com/nerrad567/gray-logic-http/internal/audit"
	"github.com/nerrad567/gray-logic-http/internal/auth"
	"github.com/nerrad567/gray-logic-http/internal/ban"
	"github.com/nerrad567/gray-logic-http/internal/core"
	"github.com/nerrad567/gray-logic-http/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-http/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-http/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-http/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-http/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"

	// stopTimeout bounds the whole shutdown, including the HTTP grace period.
	stopTimeout = 15 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic HTTP",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version).
		WithRedaction(cfg.HTTP.APIPassword, cfg.MQTT.Auth.Password, cfg.InfluxDB.Token)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	trusted, err := cfg.HTTP.ParseTrustedNetworks()
	if err != nil {
		return fmt.Errorf("parsing trusted networks: %w", err)
	}

	// The database holds bans and the audit trail.
	var db *database.DB
	var auditRepo *audit.SQLiteRepository
	var auditRec *audit.Recorder
	if cfg.HTTP.IPBanEnabled {
		db, err = openDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database ready", "path", cfg.Database.Path)

		auditRepo = audit.NewSQLiteRepository(db.DB)
		auditRec = audit.NewRecorder(auditRepo, log.With("component", "audit"))
		defer auditRec.Wait()
	}

	var mqttClient *mqtt.Client
	var mqttNotifier *ban.PublishNotifier
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		// #nosec G115 -- QoS validated to 0-2 by config.Validate
		mqttNotifier = ban.NewPublishNotifier(mqttClient, byte(cfg.MQTT.QoS), log.With("component", "ban"))
		// runs before the close above so queued notifications go out
		defer mqttNotifier.Wait()

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT connected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled, login notifications off")
	}

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

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	var notifiers ban.Notifiers
	if auditRec != nil {
		notifiers = append(notifiers, auditRec)
	}
	if mqttNotifier != nil {
		notifiers = append(notifiers, mqttNotifier)
	}

	tracker, err := newBanTracker(ctx, cfg, db, notifiers, log)
	if err != nil {
		return err
	}

	hub := core.New(log.With("component", "core"))

	deps := api.Deps{
		Config:  cfg.HTTP,
		Logger:  log.With("component", "http"),
		Host:    hub,
		Auth:    auth.New(cfg.HTTP.APIPassword, trusted),
		Bans:    tracker,
		Version: version,
	}
	if db != nil {
		deps.DB = db.DB
		deps.Audit = auditRepo
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		deps.Metrics = influxClient
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating HTTP server: %w", err)
	}
	hub.OnStart("http", server.Start)
	hub.OnStart("http-health", server.HealthCheck)
	hub.OnStop("http", server.Stop)

	if err := hub.Start(ctx); err != nil {
		return fmt.Errorf("starting hub: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal",
		"api_endpoint", server.APIEndpoint(),
		"password_set", cfg.HTTP.APIPassword != "",
		"trusted_networks", len(trusted),
	)

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := hub.Stop(stopCtx); err != nil {
		log.Error("error stopping hub", "error", err)
	}

	log.Info("Gray Logic HTTP stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openDatabase opens the SQLite database and applies migrations.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// newBanTracker builds the ban tracker, or returns nil when IP banning is
// disabled. Bans persist in db; attempts and bans go to notifiers.
func newBanTracker(ctx context.Context, cfg *config.Config, db *database.DB, notifiers ban.Notifiers,
	log *logging.Logger) (*ban.Tracker, error) {
	if !cfg.HTTP.IPBanEnabled {
		log.Info("IP banning disabled")
		return nil, nil
	}

	opts := ban.Options{
		Threshold: cfg.HTTP.LoginAttemptsThreshold,
		Store:     ban.NewSQLiteStore(db.DB),
		Logger:    log.With("component", "ban"),
	}
	if len(notifiers) > 0 {
		opts.Notifier = notifiers
	}

	tracker := ban.NewTracker(opts)
	if err := tracker.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading IP bans: %w", err)
	}
	log.Info("IP banning enabled",
		"threshold", cfg.HTTP.LoginAttemptsThreshold,
		"banned", len(tracker.Bans()),
	)
	return tracker, nil
}

// healthCheck verifies the configured backends concurrently. Nil clients
// are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	g, gctx := errgroup.WithContext(ctx)

	if db != nil {
		g.Go(func() error {
			if err := db.HealthCheck(gctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
			return nil
		})
	}
	if mqttClient != nil {
		g.Go(func() error {
			if err := mqttClient.HealthCheck(gctx); err != nil {
				return fmt.Errorf("mqtt: %w", err)
			}
			return nil
		})
	}
	if influxClient != nil {
		g.Go(func() error {
			if err := influxClient.HealthCheck(gctx); err != nil {
				return fmt.Errorf("influxdb: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}
