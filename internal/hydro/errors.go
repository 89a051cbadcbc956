package hydro

import "errors"

// Query layer errors. Check with errors.Is().
var (
	// ErrNoReadings is returned by LatestReading when hydro_parameters is empty.
	ErrNoReadings = errors.New("hydro: no sensor readings")

	// ErrInvalidCredentials is returned by Authenticate when no active user
	// matches the username and password pair.
	ErrInvalidCredentials = errors.New("hydro: incorrect username or password")
)
