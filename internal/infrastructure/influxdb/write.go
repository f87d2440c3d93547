package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementValveState   = "valve_state"
	MeasurementValveCommand = "valve_command"
)

// ValveSample is one recorded valve update.
type ValveSample struct {
	UniqueID    string
	State       string
	Position    int16
	HasPosition bool
	Source      string
	Time        time.Time
}

// WriteValveState records a state or position update. Non-blocking.
//
// The state and source are tags so dashboards can group by them; the
// position is a field and is omitted when the valve does not report one.
func (c *Client) WriteValveState(s ValveSample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(valveStatePoint(s))
}

// WriteValveCommand records a decoded command received from Home Assistant.
func (c *Client) WriteValveCommand(uniqueID, kind string, position int16) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(valveCommandPoint(uniqueID, kind, position, time.Now()))
}

func valveStatePoint(s ValveSample) *write.Point {
	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	fields := map[string]interface{}{"count": int64(1)}
	if s.HasPosition {
		fields["position"] = int64(s.Position)
	}

	return write.NewPoint(
		MeasurementValveState,
		map[string]string{
			"unique_id": s.UniqueID,
			"state":     s.State,
			"source":    s.Source,
		},
		fields,
		ts,
	)
}

func valveCommandPoint(uniqueID, kind string, position int16, ts time.Time) *write.Point {
	fields := map[string]interface{}{"count": int64(1)}
	if kind == "set_position" {
		fields["position"] = int64(position)
	}

	return write.NewPoint(
		MeasurementValveCommand,
		map[string]string{
			"unique_id": uniqueID,
			"kind":      kind,
		},
		fields,
		ts,
	)
}
