package hydro

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	latestReadingQuery = `SELECT id, ph_level, tds_level, ec_level, air_humidity, air_temperature, water_temperature, TIMESTAMP
		FROM hydro_parameters
		ORDER BY TIMESTAMP DESC
		LIMIT 1`

	listReadingsQuery = `SELECT id, hydro_uuid, ph_level, tds_level, water_temperature, air_temperature, air_humidity, ec_level, TIMESTAMP
		FROM hydro_parameters
		ORDER BY TIMESTAMP DESC`

	listActiveControlsQuery = `SELECT component_name, dispense_amount
		FROM components_control
		WHERE isActive = 1`

	updateDispenseAmountQuery = `UPDATE components_control
		SET dispense_amount = ?
		WHERE component_name = ? AND isActive = 1`

	authenticateQuery = `SELECT username, password
		FROM user_login
		WHERE username = ? AND password = ? AND isActive = 1`

	listNotificationsQuery = `SELECT message, is_read, TYPE, created_at
		FROM notifications
		ORDER BY created_at DESC`
)

// Repository is the query layer behind the HTTP routes. Every method runs a
// single parameterized statement against the shared pool.
type Repository interface {
	// LatestReading returns the reading with the greatest TIMESTAMP.
	// Returns ErrNoReadings if the table is empty.
	LatestReading(ctx context.Context) (*Reading, error)

	// ListReadings returns every reading, newest first.
	ListReadings(ctx context.Context) ([]HistoryReading, error)

	// ListActiveControls returns components whose isActive flag is 1.
	ListActiveControls(ctx context.Context) ([]ComponentControl, error)

	// UpdateDispenseAmount sets dispense_amount on the named active component
	// and reports how many rows changed. A nil amount stores NULL.
	UpdateDispenseAmount(ctx context.Context, componentName string, amount *float64) (int64, error)

	// Authenticate looks up an active user by exact username and password.
	// Returns ErrInvalidCredentials if no row matches.
	Authenticate(ctx context.Context, username, password string) (*Credentials, error)

	// ListNotifications returns every notification, newest first.
	ListNotifications(ctx context.Context) ([]Notification, error)
}

// SQLRepository implements Repository over database/sql.
type SQLRepository struct {
	db   *sql.DB
	bind func(string) string
}

// NewSQLRepository creates a repository on an open pool. bind rewrites ?
// placeholders for the active driver; nil leaves statements unchanged.
func NewSQLRepository(db *sql.DB, bind func(string) string) *SQLRepository {
	if bind == nil {
		bind = func(q string) string { return q }
	}
	return &SQLRepository{db: db, bind: bind}
}

// LatestReading returns the most recent sensor reading.
func (r *SQLRepository) LatestReading(ctx context.Context) (*Reading, error) {
	var (
		reading                                Reading
		ph, tds, ec, humidity, airTemp, waterT sql.NullFloat64
		ts                                     sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, r.bind(latestReadingQuery)).Scan(
		&reading.ID, &ph, &tds, &ec, &humidity, &airTemp, &waterT, &ts,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoReadings
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest reading: %w", err)
	}

	reading.PHLevel = rounded(ph)
	reading.TDSLevel = rounded(tds)
	reading.ECLevel = rounded(ec)
	reading.AirHumidity = rounded(humidity)
	reading.AirTemperature = rounded(airTemp)
	reading.WaterTemperature = rounded(waterT)
	reading.Timestamp = timePtr(ts)
	return &reading, nil
}

// ListReadings returns the full reading history.
func (r *SQLRepository) ListReadings(ctx context.Context) ([]HistoryReading, error) {
	rows, err := r.db.QueryContext(ctx, r.bind(listReadingsQuery))
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	readings := make([]HistoryReading, 0)
	for rows.Next() {
		var (
			h                                      HistoryReading
			uuid                                   sql.NullString
			ph, tds, waterT, airTemp, humidity, ec sql.NullFloat64
			ts                                     sql.NullTime
		)
		if err := rows.Scan(&h.ID, &uuid, &ph, &tds, &waterT, &airTemp, &humidity, &ec, &ts); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		h.HydroUUID = stringPtr(uuid)
		h.PHLevel = rounded(ph)
		h.TDSLevel = rounded(tds)
		h.WaterTemperature = rounded(waterT)
		h.AirTemperature = rounded(airTemp)
		h.AirHumidity = rounded(humidity)
		h.ECLevel = rounded(ec)
		h.Timestamp = timePtr(ts)
		readings = append(readings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return readings, nil
}

// ListActiveControls returns the active actuator settings.
func (r *SQLRepository) ListActiveControls(ctx context.Context) ([]ComponentControl, error) {
	rows, err := r.db.QueryContext(ctx, r.bind(listActiveControlsQuery))
	if err != nil {
		return nil, fmt.Errorf("querying controls: %w", err)
	}
	defer rows.Close()

	controls := make([]ComponentControl, 0)
	for rows.Next() {
		var (
			c      ComponentControl
			amount sql.NullFloat64
		)
		if err := rows.Scan(&c.ComponentName, &amount); err != nil {
			return nil, fmt.Errorf("scanning control: %w", err)
		}
		c.DispenseAmount = floatPtr(amount)
		controls = append(controls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating controls: %w", err)
	}
	return controls, nil
}

// UpdateDispenseAmount writes a new dispense amount for one component.
func (r *SQLRepository) UpdateDispenseAmount(ctx context.Context, componentName string, amount *float64) (int64, error) {
	var value any
	if amount != nil {
		value = *amount
	}

	result, err := r.db.ExecContext(ctx, r.bind(updateDispenseAmountQuery), value, componentName)
	if err != nil {
		return 0, fmt.Errorf("updating %s: %w", componentName, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return affected, nil
}

// Authenticate checks a username and password against active users.
func (r *SQLRepository) Authenticate(ctx context.Context, username, password string) (*Credentials, error) {
	var c Credentials
	err := r.db.QueryRowContext(ctx, r.bind(authenticateQuery), username, password).Scan(&c.Username, &c.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &c, nil
}

// ListNotifications returns the notification feed.
func (r *SQLRepository) ListNotifications(ctx context.Context) ([]Notification, error) {
	rows, err := r.db.QueryContext(ctx, r.bind(listNotificationsQuery))
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]Notification, 0)
	for rows.Next() {
		var (
			message, kind sql.NullString
			isRead        sql.NullInt64
			createdAt     sql.NullTime
		)
		if err := rows.Scan(&message, &isRead, &kind, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifications = append(notifications, Notification{
			Message:   stringPtr(message),
			IsRead:    int64Ptr(isRead),
			Type:      stringPtr(kind),
			CreatedAt: timePtr(createdAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notifications: %w", err)
	}
	return notifications, nil
}
