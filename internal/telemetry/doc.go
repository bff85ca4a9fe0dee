// Package telemetry turns session events into InfluxDB points.
//
// Recorder implements session.Listener. Each measurable event becomes one
// point tagged with the feeder serial; events with nothing to measure
// (settings changes, device info) are dropped.
package telemetry
