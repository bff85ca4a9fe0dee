// Package session models one PLAF203 feeder as seen from the server.
//
// The Engine answers every device request, tracks connectivity from the
// heartbeat stream, keeps the device clock in line, caches the device's
// attributes and owns the feeding plans. Operators drive the device
// through Engine methods; each sends a single request.
//
// Connectivity:
//
//	OFFLINE --heartbeat / DEVICE_START--> resync --> ONLINE
//	ONLINE  --watchdog timeout / counter reset / reboot--> OFFLINE
//
// Going online sends ATTR_GET_SERVICE, GET_CONFIG and FEEDING_PLAN_SERVICE
// (plus DEVICE_INFO_SERVICE when a camera is configured).
//
// Everything the engine learns is reported as an Event to a Listener;
// storage, telemetry, the status reporter and the WebSocket hub are all
// listeners combined with Fanout.
package session
