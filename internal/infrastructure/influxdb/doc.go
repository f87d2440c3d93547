// Package influxdb records valve telemetry in InfluxDB v2.
//
// Every accepted state or position update becomes a point in the
// valve_state measurement (tags unique_id, state, source; fields count and
// position), and every decoded command a point in valve_command.
//
// Writes are non-blocking and batched according to the batch_size and
// flush_interval settings. Asynchronous write failures are delivered to the
// callback registered with SetOnError.
//
// A nil *Client is valid and drops every write, so callers do not need to
// branch on whether InfluxDB is enabled:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    client = nil
//	}
//	client.WriteValveState(influxdb.ValveSample{UniqueID: "main", State: "open"})
package influxdb
