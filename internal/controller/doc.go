// Package controller connects a valve entity to the world around it.
//
// Commands decoded from Home Assistant drive the actuator and, unless the
// entity is optimistic, are confirmed by publishing the resulting state.
// Every accepted update is stored as the valve snapshot, appended to the
// local history, written to InfluxDB, counted in Prometheus and broadcast to
// WebSocket clients. Local updates from the HTTP API take the same path.
//
// All valve access goes through hass.Node.Do, so updates never interleave
// with the connect sequence or inbound commands.
package controller
