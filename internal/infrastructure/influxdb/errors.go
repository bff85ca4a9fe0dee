package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: telemetry disabled")

	// ErrConnectionFailed wraps a failed ping at startup.
	ErrConnectionFailed = errors.New("influxdb: server unreachable")

	// ErrNotConnected is reported by HealthCheck after Close or a failed ping.
	ErrNotConnected = errors.New("influxdb: client not connected")

	// ErrWriteFailed wraps batch errors passed to the OnError callback.
	ErrWriteFailed = errors.New("influxdb: batch write failed")
)
