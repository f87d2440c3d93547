// Package snapshot persists the last known valve state and a bounded
// history of published updates in SQLite.
//
// The snapshot is applied on startup before the MQTT connection is made, so
// the first connect sequence republishes the state the valve had when the
// process stopped. The history backs the /api/v1/valve/history endpoint and
// survives InfluxDB being unavailable.
package snapshot
