package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "hydroponics"

// Topics builds the gateway's MQTT topic names under a common prefix.
//
//	topics := mqtt.NewTopics("hydroponics")
//	topics.ControlSetting("nutrient_pump")
//	// Returns: "hydroponics/controls/nutrient_pump"
type Topics struct {
	prefix string
}

// NewTopics returns topic builders rooted at prefix.
// Leading and trailing slashes are trimmed.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root of every topic.
func (t Topics) Prefix() string {
	return t.prefix
}

// ControlSetting returns the retained topic carrying a component's dispense amount.
//
// Example: hydroponics/controls/nutrient_pump
func (t Topics) ControlSetting(componentName string) string {
	return fmt.Sprintf("%s/controls/%s", t.prefix, topicSegment(componentName))
}

// GatewayStatus returns the retained online/offline status topic.
//
// Example: hydroponics/system/status
func (t Topics) GatewayStatus() string {
	return t.prefix + "/system/status"
}

// topicSegment makes a component name safe for use as a single topic level.
// Wildcards and level separators are replaced with underscores.
func topicSegment(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}
