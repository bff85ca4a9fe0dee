package mqtt

import "errors"

// Broker state.
var (
	// ErrConnectionFailed wraps the broker's reason when Connect gives up.
	ErrConnectionFailed = errors.New("mqtt: broker connection failed")

	// ErrNotConnected is returned by Publish and Subscribe while the client
	// is between reconnects.
	ErrNotConnected = errors.New("mqtt: not connected to broker")
)

// Argument checks, made before anything reaches paho.
var (
	ErrInvalidTopic = errors.New("mqtt: empty topic")
	ErrInvalidQoS   = errors.New("mqtt: qos must be 0, 1 or 2")
)

// Operation failures. The paho token error is wrapped alongside.
var (
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")
)
