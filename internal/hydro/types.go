package hydro

import (
	"database/sql"
	"math"
	"time"
)

// Reading is the latest sensor snapshot served by /api/hydro-parameters.
// Sensor values are rounded to two decimals; NULL columns stay nil.
type Reading struct {
	ID               int64      `json:"id"`
	PHLevel          *float64   `json:"ph_level"`
	TDSLevel         *float64   `json:"tds_level"`
	ECLevel          *float64   `json:"ec_level"`
	AirHumidity      *float64   `json:"air_humidity"`
	AirTemperature   *float64   `json:"air_temperature"`
	WaterTemperature *float64   `json:"water_temperature"`
	Timestamp        *time.Time `json:"TIMESTAMP"`
}

// HistoryReading is one row of /api/fetch_data_source. It carries the
// hydro_uuid column and keys the pH value as "pH_level", which is the shape
// the dashboard reads for the history chart.
type HistoryReading struct {
	ID               int64      `json:"id"`
	HydroUUID        *string    `json:"hydro_uuid"`
	PHLevel          *float64   `json:"pH_level"`
	TDSLevel         *float64   `json:"tds_level"`
	WaterTemperature *float64   `json:"water_temperature"`
	AirTemperature   *float64   `json:"air_temperature"`
	AirHumidity      *float64   `json:"air_humidity"`
	ECLevel          *float64   `json:"ec_level"`
	Timestamp        *time.Time `json:"TIMESTAMP"`
}

// ComponentControl is an active actuator and its configured dispense amount.
type ComponentControl struct {
	ComponentName  string   `json:"component_name"`
	DispenseAmount *float64 `json:"dispense_amount"`
}

// Credentials is the user_login row returned on a successful login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Notification is one entry of the notification feed.
type Notification struct {
	Message   *string    `json:"message"`
	IsRead    *int64     `json:"is_read"`
	Type      *string    `json:"type"`
	CreatedAt *time.Time `json:"created_at"`
}

// Round2 rounds v to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// rounded converts a nullable sensor column to its serialized form.
func rounded(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	r := Round2(v.Float64)
	return &r
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}
