package database

import "errors"

var (
	// ErrUnsupportedDriver is returned by Open for an unknown driver name.
	ErrUnsupportedDriver = errors.New("database: unsupported driver")

	// ErrMigrationsUnsupported is returned by Migrate on non-sqlite backends,
	// whose schema is owned outside the gateway.
	ErrMigrationsUnsupported = errors.New("database: migrations are only supported for sqlite")
)
