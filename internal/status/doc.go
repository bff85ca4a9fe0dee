// Package status publishes the feeder session state to MQTT.
//
// The Reporter keeps a retained snapshot on plaf203/<serial>/status,
// refreshed on an interval and whenever connectivity, clock or dispenser
// state changes. Every session event is also mirrored, not retained, on
// plaf203/<serial>/event/<kind> so other services can follow the feeder
// without talking to the device protocol.
//
// Process liveness is separate: the MQTT client owns the retained
// plaf203/<serial>/bridge topic and its Last Will.
package status
