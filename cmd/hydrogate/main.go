// HydroGate - hydroponics monitoring gateway
//
// This is the main entry point for the HydroGate HTTP service. It serves the
// latest and historical sensor readings, the active dispensing components and
// their settings, user login, and notifications from a relational database.
// Dispense amount changes are fanned out to WebSocket clients, MQTT and
// InfluxDB when those are enabled.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	_ "github.com/nerrad567/hydrogate/migrations"

	"github.com/nerrad567/hydrogate/internal/api"
	"github.com/nerrad567/hydrogate/internal/hydro"
	"github.com/nerrad567/hydrogate/internal/infrastructure/config"
	"github.com/nerrad567/hydrogate/internal/infrastructure/database"
	"github.com/nerrad567/hydrogate/internal/infrastructure/influxdb"
	"github.com/nerrad567/hydrogate/internal/infrastructure/logging"
	"github.com/nerrad567/hydrogate/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path. A missing default file is not an error:
// built-in defaults and HYDRO_* environment variables are used instead.
const defaultConfigPath = "configs/config.yaml"

// startupCheckTimeout bounds the initial connectivity checks.
const startupCheckTimeout = 5 * time.Second

// options are the command-line flags.
type options struct {
	// migrateDown rolls back the latest sqlite migration and exits.
	migrateDown bool
}

func main() {
	var opts options
	flag.BoolVar(&opts.migrateDown, "migrate-down", false,
		"roll back the most recent sqlite migration and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context, opts options) error {
	log := logging.Default()
	log.Info("starting HydroGate",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	if err := loadDotEnv(".env"); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}

	configPath := getConfigPath()
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

	db, err := database.Open(databaseConfig(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	// An unreachable database is not fatal: each request reports it and the
	// pool reconnects once the server is back.
	checkCtx, cancelCheck := context.WithTimeout(ctx, startupCheckTimeout)
	if pingErr := db.HealthCheck(checkCtx); pingErr != nil {
		log.Warn("database not reachable at startup, serving anyway",
			"driver", db.Driver(),
			"target", db.Target(),
			"error", pingErr,
		)
	} else {
		log.Info("database connected", "driver", db.Driver(), "target", db.Target())
	}
	cancelCheck()

	if opts.migrateDown {
		if downErr := db.MigrateDown(ctx); downErr != nil {
			return fmt.Errorf("rolling back migration: %w", downErr)
		}
		log.Info("latest database migration rolled back")
		return nil
	}

	if cfg.Database.Migrate {
		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")
	}

	deps := api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Repo:    hydro.NewSQLRepository(db.DB, db.Rebind),
		DB:      db,
		Version: version,
	}

	// Publisher and Recorder are interfaces; only assign non-nil clients.
	if mqttClient := connectMQTT(cfg.MQTT, log); mqttClient != nil {
		defer func() {
			log.Info("closing MQTT connection")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		deps.Publisher = mqttClient
	}

	if influxClient := connectInfluxDB(cfg.InfluxDB, log); influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		deps.Recorder = influxClient
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	log.Info("HydroGate started", "addr", server.Addr())

	<-ctx.Done()
	log.Info("shutdown signal received, stopping...")

	return nil
}

// loadDotEnv reads KEY=value pairs from path into the environment without
// overriding variables that are already set. A missing file is ignored.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// getConfigPath returns the configuration file path.
//
// HYDRO_CONFIG wins when set. Otherwise the default path is used if the file
// exists, and an empty path (defaults plus environment) if it does not.
func getConfigPath() string {
	if path := os.Getenv("HYDRO_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err != nil {
		return ""
	}
	return defaultConfigPath
}

// databaseConfig maps the YAML database section onto the pool options.
func databaseConfig(cfg config.DatabaseConfig) database.Config {
	return database.Config{
		Driver:          cfg.Driver,
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Name:            cfg.Name,
		SSLMode:         cfg.SSLMode,
		Path:            cfg.Path,
		WALMode:         cfg.WALMode,
		BusyTimeout:     cfg.BusyTimeout,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetime) * time.Second,
	}
}

// connectMQTT connects to the broker when enabled. Failure is logged and the
// gateway keeps serving HTTP without bus announcements.
func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) *mqtt.Client {
	if !cfg.Enabled {
		log.Info("MQTT disabled")
		return nil
	}

	client, err := mqtt.Connect(cfg)
	if err != nil {
		log.Warn("MQTT unavailable, control changes will not be published",
			"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
			"error", err,
		)
		return nil
	}

	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT connection lost", "error", err)
	})

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"topic_prefix", client.Topics().Prefix(),
	)
	return client
}

// connectInfluxDB connects to InfluxDB when enabled. Failure is logged and
// control changes are simply not recorded.
func connectInfluxDB(cfg config.InfluxDBConfig, log *logging.Logger) *influxdb.Client {
	if !cfg.Enabled {
		log.Info("InfluxDB disabled")
		return nil
	}

	client, err := influxdb.Connect(cfg)
	if err != nil {
		log.Warn("InfluxDB unavailable, control changes will not be recorded",
			"url", cfg.URL,
			"error", err,
		)
		return nil
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})

	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client
}
