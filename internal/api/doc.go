// Package api implements the HTTP REST API and WebSocket event stream for
// the PLAF203 feeder core.
//
// This package provides:
//   - REST endpoints under /api/v1 for status, attributes, settings,
//     feeding plans, manual feeding, device actions and the feed log
//   - a WebSocket hub that relays every session event to subscribed clients
//   - optional bearer token auth with viewer and admin roles
//   - a middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// Handlers call the session engine directly. Writes that reach the device
// return 202 Accepted once the request is published; the outcome arrives
// later as an event on the WebSocket stream and in the next status read.
//
// # Security
//
// When api.auth.enabled is set, every route except /health and /metrics
// needs an HS256 token issued by `plaf203 token`, sent as a Bearer header
// or, for WebSocket upgrades, as the token query parameter.
//
// # Graceful Degradation
//
// Reads work while the broker is down; device writes fail with 503.
package api
