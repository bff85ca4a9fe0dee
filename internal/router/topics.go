package router

import (
	"fmt"

	"github.com/nerrad567/plaf203-core/internal/protocol"
)

// DefaultProduct is the product tag in every topic.
const DefaultProduct = "PLAF203"

// Topics builds the per-device topic names:
//
//	dl/<product>/<serial>/device/<stream>/post   device to server
//	dl/<product>/<serial>/device/<stream>/sub    server to device
type Topics struct {
	Product string
	Serial  string
}

func (t Topics) product() string {
	if t.Product == "" {
		return DefaultProduct
	}
	return t.Product
}

func (t Topics) topic(endpoint, direction string) string {
	return fmt.Sprintf("dl/%s/%s/device/%s/%s", t.product(), t.Serial, endpoint, direction)
}

// Post returns the topic the device publishes stream messages on.
func (t Topics) Post(stream protocol.Stream) string { return t.topic(string(stream), "post") }

// Sub returns the topic the device listens on for stream messages.
func (t Topics) Sub(stream protocol.Stream) string { return t.topic(string(stream), "sub") }

// Broadcast returns the device's broadcast topic.
func (t Topics) Broadcast() string { return t.topic("broadcast", "sub") }
