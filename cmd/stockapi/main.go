// stockapi Core - stock lookup service core.
//
// This is the main entry point. It loads configuration, connects the
// database manager, applies the schema, starts the optional status
// publishers and the operational HTTP server, then waits for a shutdown
// signal and tears everything down in reverse order.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/stockapi-core/internal/api"
	"github.com/nerrad567/stockapi-core/internal/infrastructure/config"
	"github.com/nerrad567/stockapi-core/internal/infrastructure/database"
	"github.com/nerrad567/stockapi-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/stockapi-core/internal/infrastructure/logging"
	"github.com/nerrad567/stockapi-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/stockapi-core/internal/poolmon"
	"github.com/nerrad567/stockapi-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path. Missing is fine: defaults and
// STOCKAPI_* variables are enough to run.
const defaultConfigPath = "configs/config.yaml"

// startupCheckTimeout bounds the health checks run once everything is up.
const startupCheckTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting stockapi Core",
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
		"environment", cfg.Environment,
		"autocommit", cfg.Autocommit(),
	)

	connCfg, err := database.ParseConnectionString(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("parsing database url: %w", err)
	}

	// MQTT first, so the status publisher sees every database transition.
	var mqttClient *mqtt.Client
	var status *mqtt.StatusPublisher
	if cfg.MQTT.Enabled {
		mqttLog := log.Component("mqtt")
		mqttClient, err = mqtt.Connect(cfg.MQTT, mqtt.WithLogger(mqttLog))
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()

		status = mqtt.NewStatusPublisher(mqttClient, connCfg, mqttClient.QoS())
		status.SetLogger(mqttLog)
	} else {
		log.Info("MQTT disabled")
	}

	mgr, err := acquireManager(cfg, log, status)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		database.CloseAll()
	}()

	if err := mgr.Connect(ctx,
		database.WithEchoSQL(cfg.Database.EchoSQL),
		database.WithPoolSize(cfg.Database.PoolSize),
		database.WithMaxOverflow(cfg.Database.MaxOverflow),
	); err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}

	if cfg.Database.MigrateOnStart {
		if err := mgr.Migrate(ctx, migrations.Schema(), false); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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

	if monitor := newPoolMonitor(cfg, mgr, influxClient, status, log); monitor != nil {
		monitor.Start(ctx)
		defer monitor.Stop()
	}

	checks := optionalChecks(mqttClient, influxClient)

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Logger:   log.Component("api"),
		Database: mgr,
		Checks:   checks,
		Version:  version,
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

	if err := healthCheck(ctx, mgr, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal", "api", server.Addr())

	<-ctx.Done()

	// Deferred cleanup runs in reverse order: API server, pool monitor,
	// InfluxDB, database (CloseAll), MQTT.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// STOCKAPI_CONFIG wins; otherwise the default path is used when it exists.
func getConfigPath() string {
	if path := os.Getenv("STOCKAPI_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

// acquireManager gets the process-wide manager for the configured database.
func acquireManager(cfg *config.Config, log *logging.Logger, status *mqtt.StatusPublisher) (*database.Manager, error) {
	opts := []database.Option{
		database.WithAutocommit(cfg.Autocommit()),
		database.WithLogger(log.Component("database")),
	}
	if status != nil {
		opts = append(opts, database.WithStateListener(status.OnState))
	}

	mgr, err := database.Acquire(cfg.Database.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating database manager: %w", err)
	}
	return mgr, nil
}

// newPoolMonitor returns a monitor feeding every enabled sink, or nil if none is.
func newPoolMonitor(cfg *config.Config, mgr *database.Manager, influxClient *influxdb.Client, status *mqtt.StatusPublisher, log *logging.Logger) *poolmon.Monitor {
	var sinks []poolmon.Sink
	if influxClient != nil {
		sinks = append(sinks, influxClient)
	}
	if status != nil {
		sinks = append(sinks, status)
	}
	if len(sinks) == 0 {
		return nil
	}

	return poolmon.New(poolmon.Config{
		Source:   mgr,
		Sinks:    sinks,
		Interval: cfg.GetPoolStatsInterval(),
		Logger:   log.Component("poolmon"),
	})
}

// optionalChecks collects the enabled optional dependencies for health
// reporting. Nil clients are left out so no typed nil reaches an interface.
func optionalChecks(mqttClient *mqtt.Client, influxClient *influxdb.Client) map[string]api.HealthChecker {
	checks := make(map[string]api.HealthChecker)
	if mqttClient != nil {
		checks["mqtt"] = mqttClient
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}
	return checks
}

// healthCheck verifies every connection once at startup.
func healthCheck(ctx context.Context, mgr *database.Manager, checks map[string]api.HealthChecker) error {
	ctx, cancel := context.WithTimeout(ctx, startupCheckTimeout)
	defer cancel()

	var errs []error
	if err := mgr.HealthCheck(ctx); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
