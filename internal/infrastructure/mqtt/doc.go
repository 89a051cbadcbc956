// Package mqtt publishes control changes from the hydroponics gateway to an
// MQTT broker.
//
// When a dispense amount is updated through the API, the new value is
// published retained on <prefix>/controls/<component_name>. Dosing
// controllers subscribe to <prefix>/controls/+ and receive the current
// setting immediately on connect.
//
// The gateway's own availability is published retained on
// <prefix>/system/status, with a Last Will so an unexpected disconnect is
// visible to subscribers.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	amount := 12.5
//	err = client.PublishControlSetting("nutrient_pump", &amount)
//
// The broker is optional. When it is unreachable the API keeps serving and
// publish failures are only logged.
package mqtt
