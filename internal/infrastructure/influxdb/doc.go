// Package influxdb records control changes in InfluxDB.
//
// Every successful dispense amount update is written as a point in the
// component_control measurement, tagged by component_name. This gives growers
// a time-series audit trail of dosing adjustments next to the sensor data.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteControlChange("nutrient_pump", &amount)
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Async write failures are delivered to the SetOnError
// callback.
package influxdb
