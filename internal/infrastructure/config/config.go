package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported database drivers.
const (
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the root configuration structure for the hydroponics gateway.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig contains relational database connection settings.
//
// Host, Port, User, Password and Name apply to the mysql and postgres drivers.
// Path, WALMode and BusyTimeout apply to the sqlite driver.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`

	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	MaxOpenConns    int `yaml:"max_open_conns"`
	MaxIdleConns    int `yaml:"max_idle_conns"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime"` // seconds

	// Migrate applies the embedded schema on startup (sqlite only).
	Migrate bool `yaml:"migrate"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
// An empty AllowedOrigins list allows every origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Enabled        bool `yaml:"enabled"`
	MaxMessageSize int  `yaml:"max_message_size"`
	PingInterval   int  `yaml:"ping_interval"`
	PongTimeout    int  `yaml:"pong_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HYDRO_SECTION_KEY
// For example: HYDRO_DATABASE_HOST, HYDRO_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config matching the original single-host deployment.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          DriverMySQL,
			Host:            "localhost",
			Port:            3306,
			User:            "root",
			Name:            "capstoneone",
			SSLMode:         "disable",
			Path:            "./data/hydro.db",
			WALMode:         true,
			BusyTimeout:     5,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hydrogate",
			},
			QoS:         1,
			TopicPrefix: "hydroponics",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"HYDRO_DATABASE_DRIVER":   &cfg.Database.Driver,
		"HYDRO_DATABASE_HOST":     &cfg.Database.Host,
		"HYDRO_DATABASE_USER":     &cfg.Database.User,
		"HYDRO_DATABASE_PASSWORD": &cfg.Database.Password,
		"HYDRO_DATABASE_NAME":     &cfg.Database.Name,
		"HYDRO_DATABASE_PATH":     &cfg.Database.Path,
		"HYDRO_API_HOST":          &cfg.API.Host,
		"HYDRO_MQTT_HOST":         &cfg.MQTT.Broker.Host,
		"HYDRO_MQTT_USERNAME":     &cfg.MQTT.Auth.Username,
		"HYDRO_MQTT_PASSWORD":     &cfg.MQTT.Auth.Password,
		"HYDRO_INFLUXDB_URL":      &cfg.InfluxDB.URL,
		"HYDRO_INFLUXDB_TOKEN":    &cfg.InfluxDB.Token,
		"HYDRO_LOG_LEVEL":         &cfg.Logging.Level,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"HYDRO_DATABASE_PORT": &cfg.Database.Port,
		"HYDRO_API_PORT":      &cfg.API.Port,
	}
	var errs []error
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		*dst = n
	}
	return errors.Join(errs...)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres:
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Name == "" {
			errs = append(errs, "database.name is required")
		}
		if c.Database.Migrate {
			errs = append(errs, "database.migrate is only supported with the sqlite driver")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not one of mysql, postgres, sqlite", c.Database.Driver))
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
