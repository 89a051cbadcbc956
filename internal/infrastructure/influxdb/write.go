package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement and field names for control change points.
const (
	measurementControlChange = "component_control"
	tagComponent             = "component_name"
	fieldDispenseAmount      = "dispense_amount"
	fieldCleared             = "cleared"
)

// WriteControlChange records a dispense amount change for a component.
//
// The write is non-blocking; points are batched and sent asynchronously.
// A nil amount records the setting being cleared. Calls on a closed client
// are dropped.
//
// Example:
//
//	amount := 12.5
//	client.WriteControlChange("nutrient_pump", &amount)
func (c *Client) WriteControlChange(componentName string, amount *float64) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(controlChangePoint(componentName, amount, time.Now()))
}

// controlChangePoint builds the point written by WriteControlChange.
func controlChangePoint(componentName string, amount *float64, at time.Time) *write.Point {
	fields := map[string]interface{}{
		fieldCleared: amount == nil,
	}
	if amount != nil {
		fields[fieldDispenseAmount] = *amount
	}

	return write.NewPoint(
		measurementControlChange,
		map[string]string{tagComponent: componentName},
		fields,
		at,
	)
}
