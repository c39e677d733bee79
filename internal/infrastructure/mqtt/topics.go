package mqtt

import "fmt"

// Feeder device topics.
//
// The feeder firmware publishes on a fixed, flat topic scheme with no
// per-device segment, so these are plain constants rather than builders.
// Every feeder message carries a "source" field in its JSON payload to
// identify the originating device.
const (
	// TopicFeederInfo carries telemetry snapshots from feeder devices.
	TopicFeederInfo = "feeder/info"

	// TopicFeederControl carries feed commands: device-originated runs and
	// client-originated ones relayed by Core.
	TopicFeederControl = "feeder/control"

	// TopicFeederSchedule carries schedule mutations (ADD/REMOVE).
	TopicFeederSchedule = "feeder/schedule"
)

// Core system topics.
const (
	// TopicPrefixSystem is the base for Aquafeed system topics.
	TopicPrefixSystem = "aquafeed/system"

	// TopicSystemStatus is where Core publishes its online/offline status,
	// including the broker-delivered LWT on unexpected disconnect.
	TopicSystemStatus = TopicPrefixSystem + "/status"
)

// Topics provides builders for Aquafeed MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// FeederInfo returns the feeder telemetry topic.
func (Topics) FeederInfo() string {
	return TopicFeederInfo
}

// FeederControl returns the feed command topic.
func (Topics) FeederControl() string {
	return TopicFeederControl
}

// FeederSchedule returns the schedule mutation topic.
func (Topics) FeederSchedule() string {
	return TopicFeederSchedule
}

// SystemStatus returns the Core status topic.
func (Topics) SystemStatus() string {
	return TopicSystemStatus
}

// SystemEvent returns the topic for Core system events.
//
// Example: aquafeed/system/event/schedule_rejected
func (Topics) SystemEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixSystem, eventType)
}

// AllFeederTopics returns a pattern matching all feeder device topics.
//
// Pattern: feeder/#
func (Topics) AllFeederTopics() string {
	return "feeder/#"
}
