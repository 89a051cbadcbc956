package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Driver names accepted by Open.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	// dirPermissions is the permission mode for the SQLite database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the SQLite database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connMaxIdleTime is how long idle connections are kept open.
	connMaxIdleTime = 30 * time.Minute
)

// DB wraps the sql.DB pool shared by every request handler.
// It is opened once at process start and closed at shutdown.
type DB struct {
	*sql.DB
	driver string
	target string
}

// Config contains database configuration options.
// These map to the database section of config.yaml.
type Config struct {
	// Driver selects the backend: mysql, postgres or sqlite.
	Driver string

	// Network settings for mysql and postgres.
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string

	// Path is the SQLite database file. The directory is created if missing.
	Path string

	// WALMode enables Write-Ahead Logging (sqlite only).
	WALMode bool

	// BusyTimeout is the maximum time to wait for a SQLite lock (seconds).
	BusyTimeout int

	// Pool sizing for mysql and postgres. Zero keeps the database/sql default.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open creates the connection pool for the configured driver.
//
// No connection is established here: database/sql dials lazily, so an
// unreachable server surfaces on the first query or on HealthCheck. Callers
// decide whether that is fatal.
func Open(cfg Config) (*DB, error) {
	driverName, dsn, target, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// SQLite supports a single writer; keep one connection ready.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	if cfg.Driver == DriverSQLite {
		_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // file may not exist until first write
	}

	return &DB{
		DB:     sqlDB,
		driver: cfg.Driver,
		target: target,
	}, nil
}

// dataSource resolves the database/sql driver name, DSN and a log-safe
// description of the target (no password) for cfg.
func dataSource(cfg Config) (driverName, dsn, target string, err error) {
	switch cfg.Driver {
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		mc.DBName = cfg.Name
		mc.ParseTime = true
		return "mysql", mc.FormatDSN(), fmt.Sprintf("mysql://%s/%s", mc.Addr, cfg.Name), nil

	case DriverPostgres:
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Path:     "/" + cfg.Name,
			RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
		}
		return "postgres", u.String(), fmt.Sprintf("postgres://%s/%s", u.Host, cfg.Name), nil

	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
			return "", "", "", fmt.Errorf("creating database directory: %w", err)
		}
		// See: https://github.com/mattn/go-sqlite3#connection-string
		connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
			cfg.Path,
			cfg.BusyTimeout*msPerSecond,
		)
		if cfg.WALMode {
			connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
		}
		return "sqlite3", connStr, "sqlite://" + cfg.Path, nil

	default:
		return "", "", "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}

// Close closes the connection pool. Safe to call on a nil pool.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Driver returns the configured driver name.
func (db *DB) Driver() string {
	return db.driver
}

// Target returns a description of the database location without credentials.
func (db *DB) Target() string {
	return db.target
}

// HealthCheck verifies the database is reachable by running a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Rebind rewrites ? placeholders into the driver's positional form.
// Queries are written with ? (mysql, sqlite); postgres needs $1..$n.
func (db *DB) Rebind(query string) string {
	return Rebind(db.driver, query)
}

// Rebind rewrites ? placeholders for driver. Statements passed here must not
// contain literal question marks.
func Rebind(driver, query string) string {
	if driver != DriverPostgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ExecContext executes a statement that doesn't return rows, wrapping errors
// with consistent context.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return result, nil
}

// BeginTx starts a new transaction with the given options.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}
