package mqtt

import "fmt"

// Fixed topic strings shared with the farm devices. Device firmware
// hard-codes these, so they are constants rather than configuration.
const (
	// TopicPrefixTelemetry is the base for everything devices publish.
	TopicPrefixTelemetry = "dt/farm/house"

	// TopicPrefixCommand is the base for actuator commands.
	TopicPrefixCommand = "cmd/farm/house"

	// TopicPrefixThreshold is the base for threshold configuration pushed to devices.
	TopicPrefixThreshold = "farm/house"

	// TopicPrefixSystem is the base for the bridge's own status topics.
	TopicPrefixSystem = "farmbridge/system"
)

// Topics provides builders for farm bus topics.
//
//	topics := mqtt.Topics{}
//	topics.Command("pump")
//	// Returns: "cmd/farm/house/pump/control/req"
type Topics struct{}

// Graph returns the topic devices publish periodic telemetry on.
//
// Example: dt/farm/house/graph
func (Topics) Graph() string {
	return TopicPrefixTelemetry + "/graph"
}

// Realtime returns the topic devices publish live readings on.
//
// Example: dt/farm/house/realtime
func (Topics) Realtime() string {
	return TopicPrefixTelemetry + "/realtime"
}

// Warning returns the threshold-violation topic for an attribute.
//
// Example: dt/farm/house/temperature/warning
func (Topics) Warning(attribute string) string {
	return fmt.Sprintf("%s/%s/warning", TopicPrefixTelemetry, attribute)
}

// Command returns the control request topic for an actuator capability.
//
// Example: cmd/farm/house/dcpan/control/req
func (Topics) Command(capability string) string {
	return fmt.Sprintf("%s/%s/control/req", TopicPrefixCommand, capability)
}

// Threshold returns the topic carrying initial thresholds for an attribute.
//
// Example: farm/house/humidity
func (Topics) Threshold(attribute string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixThreshold, attribute)
}

// ThresholdModify returns the topic carrying updated thresholds.
//
// Example: farm/house/humidity/modify
func (Topics) ThresholdModify(attribute string) string {
	return fmt.Sprintf("%s/%s/modify", TopicPrefixThreshold, attribute)
}

// BridgeStatus returns the retained online/offline status topic.
//
// Example: farmbridge/system/status
func (Topics) BridgeStatus() string {
	return TopicPrefixSystem + "/status"
}

// Inbound returns every topic the bridge must be subscribed to.
func (t Topics) Inbound(attributes []string) []string {
	topics := make([]string, 0, len(attributes)+2)
	for _, a := range attributes {
		topics = append(topics, t.Warning(a))
	}
	return append(topics, t.Graph(), t.Realtime())
}
