package mqtt

import "fmt"

// TopicPrefix is the root of every topic this service owns. Device traffic
// lives under the firmware's own "dl/" namespace and is built by the router.
const TopicPrefix = "plaf203"

// Topics builds the bridge-owned topics for one feeder.
//
//	t := mqtt.Topics{Serial: "AF0123"}
//	t.Status() // "plaf203/AF0123/status"
type Topics struct {
	Serial string
}

// Bridge returns the retained connectivity topic of this process.
// It carries the LWT, so subscribers see "offline" if the process dies.
//
// Example: plaf203/AF0123/bridge
func (t Topics) Bridge() string {
	return fmt.Sprintf("%s/%s/bridge", TopicPrefix, t.Serial)
}

// Status returns the retained device session status topic.
//
// Example: plaf203/AF0123/status
func (t Topics) Status() string {
	return fmt.Sprintf("%s/%s/status", TopicPrefix, t.Serial)
}

// Events returns the topic session events are mirrored on.
//
// Example: plaf203/AF0123/event/feed_ended
func (t Topics) Events(kind string) string {
	return fmt.Sprintf("%s/%s/event/%s", TopicPrefix, t.Serial, kind)
}

// AllEvents returns a wildcard for every mirrored event of the feeder.
func (t Topics) AllEvents() string {
	return fmt.Sprintf("%s/%s/event/+", TopicPrefix, t.Serial)
}

// DeviceTraffic returns a wildcard matching every firmware topic of the
// feeder in both directions. Handy for sniffing.
//
// Example: dl/PLAF203/AF0123/device/#
func (t Topics) DeviceTraffic(product string) string {
	return fmt.Sprintf("dl/%s/%s/device/#", product, t.Serial)
}
