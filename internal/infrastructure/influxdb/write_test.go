package influxdb

import (
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-valve/internal/infrastructure/config"
)

func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{Enabled: true, URL: "http://127.0.0.1:8086", BatchSize: 100, FlushInterval: 1}
}

func pointTags(t *testing.T, tags map[string]string, want map[string]string) {
	t.Helper()
	for k, v := range want {
		if tags[k] != v {
			t.Errorf("tag %s = %q, want %q", k, tags[k], v)
		}
	}
}

func TestValveStatePoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		sample       ValveSample
		wantPosition bool
	}{
		{
			name:   "state only",
			sample: ValveSample{UniqueID: "main", State: "open", Source: "api", Time: at},
		},
		{
			name:         "with position",
			sample:       ValveSample{UniqueID: "main", State: "opening", Position: 40, HasPosition: true, Source: "mqtt", Time: at},
			wantPosition: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valveStatePoint(tt.sample)

			if p.Name() != MeasurementValveState {
				t.Errorf("Name() = %q, want %q", p.Name(), MeasurementValveState)
			}
			if !p.Time().Equal(at) {
				t.Errorf("Time() = %v, want %v", p.Time(), at)
			}

			tags := make(map[string]string)
			for _, tag := range p.TagList() {
				tags[tag.Key] = tag.Value
			}
			pointTags(t, tags, map[string]string{
				"unique_id": tt.sample.UniqueID,
				"state":     tt.sample.State,
				"source":    tt.sample.Source,
			})

			fields := make(map[string]any)
			for _, f := range p.FieldList() {
				fields[f.Key] = f.Value
			}
			pos, ok := fields["position"]
			if ok != tt.wantPosition {
				t.Fatalf("position field present = %v, want %v", ok, tt.wantPosition)
			}
			if ok && pos != int64(tt.sample.Position) {
				t.Errorf("position = %v, want %d", pos, tt.sample.Position)
			}
			if fields["count"] != int64(1) {
				t.Errorf("count = %v, want 1", fields["count"])
			}
		})
	}
}

func TestValveStatePointDefaultsTime(t *testing.T) {
	before := time.Now()
	p := valveStatePoint(ValveSample{UniqueID: "main", State: "closed"})
	if p.Time().Before(before) {
		t.Errorf("Time() = %v, want now", p.Time())
	}
}

func TestValveCommandPoint(t *testing.T) {
	at := time.Now()

	p := valveCommandPoint("main", "set_position", 75, at)
	if p.Name() != MeasurementValveCommand {
		t.Errorf("Name() = %q", p.Name())
	}
	var position any
	for _, f := range p.FieldList() {
		if f.Key == "position" {
			position = f.Value
		}
	}
	if position != int64(75) {
		t.Errorf("position = %v, want 75", position)
	}

	p = valveCommandPoint("main", "stop", 0, at)
	for _, f := range p.FieldList() {
		if f.Key == "position" {
			t.Error("stop command should not carry a position")
		}
	}
}

func TestBatchSettings(t *testing.T) {
	tests := []struct {
		name          string
		batch, flush  int
		wantB, wantFl int
	}{
		{"configured", 50, 2, 50, 2},
		{"zero uses defaults", 0, 0, 100, 10},
		{"negative uses defaults", -5, -1, 100, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.BatchSize, cfg.FlushInterval = tt.batch, tt.flush
			b, f := batchSettings(cfg)
			if b != tt.wantB || f != tt.wantFl {
				t.Errorf("batchSettings() = (%d, %d), want (%d, %d)", b, f, tt.wantB, tt.wantFl)
			}
		})
	}
}

func TestNilClient(t *testing.T) {
	var c *Client

	if c.IsConnected() {
		t.Error("nil client reports connected")
	}
	c.WriteValveState(ValveSample{UniqueID: "main", State: "open"})
	c.WriteValveCommand("main", "open", 0)
	c.Flush()
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
