// Package api implements the local HTTP API and WebSocket event stream of
// the valve service.
//
// Endpoints:
//
//	GET  /api/v1/health         component health
//	GET  /api/v1/valve          current state and capabilities
//	PUT  /api/v1/valve/state    publish a state and/or position
//	GET  /api/v1/valve/history  recent accepted updates
//	GET  /api/v1/ws             WebSocket events (valve.command, valve.state)
//	GET  /metrics               Prometheus metrics
//
// When api.jwt_secret is set, every /api/v1 route except health requires a
// bearer token from the auth package; changing the state requires the
// control scope. WebSocket clients pass the token in the token query
// parameter.
package api
