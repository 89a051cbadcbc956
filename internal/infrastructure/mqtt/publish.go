package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// ControlSettingMessage is the retained payload describing a component's
// current dispense amount. A nil DispenseAmount means the setting was cleared.
type ControlSettingMessage struct {
	ComponentName  string   `json:"component_name"`
	DispenseAmount *float64 `json:"dispense_amount"`
	Timestamp      string   `json:"timestamp"`
}

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "hydroponics/controls/nutrient_pump")
//   - payload: The message payload (typically JSON, max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should keep the message for new subscribers
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishRetained publishes a retained message with the configured default QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}

// PublishControlSetting announces a component's new dispense amount on its
// retained control topic so dosing controllers pick it up on (re)subscribe.
func (c *Client) PublishControlSetting(componentName string, amount *float64) error {
	payload, err := buildControlSettingPayload(componentName, amount, time.Now())
	if err != nil {
		return err
	}
	return c.PublishRetained(c.topics.ControlSetting(componentName), payload)
}

func buildControlSettingPayload(componentName string, amount *float64, at time.Time) ([]byte, error) {
	data, err := json.Marshal(ControlSettingMessage{
		ComponentName:  componentName,
		DispenseAmount: amount,
		Timestamp:      at.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding control setting: %w", ErrPublishFailed, err)
	}
	return data, nil
}
