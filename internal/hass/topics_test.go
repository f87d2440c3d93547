package hass

import (
	"errors"
	"testing"
)

func testNamespace() Namespace {
	return Namespace{
		DiscoveryPrefix: DefaultDiscoveryPrefix,
		DataPrefix:      "gl",
		DeviceID:        "garden",
	}
}

func TestNamespaceTopics(t *testing.T) {
	ns := testNamespace()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"ConfigTopic", ns.ConfigTopic(ComponentValve, "main"), "homeassistant/valve/garden/main/config"},
		{"DataTopic state", ns.DataTopic("main", StateTopic), "gl/garden/main/stat_t"},
		{"DataTopic command", ns.DataTopic("main", CommandTopic), "gl/garden/main/cmd_t"},
		{"AvailabilityTopic", ns.AvailabilityTopic(), "gl/garden/avty_t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestParseDataTopic(t *testing.T) {
	ns := testNamespace()

	tests := []struct {
		topic      string
		wantID     string
		wantSuffix string
		wantOK     bool
	}{
		{"gl/garden/main/cmd_t", "main", "cmd_t", true},
		{"gl/garden/main/stat_t", "main", "stat_t", true},
		{"gl/garden/avty_t", "", "", false},
		{"gl/other/main/cmd_t", "", "", false},
		{"gl/garden//cmd_t", "", "", false},
		{"gl/garden/main/", "", "", false},
		{"gl/garden/main/cmd_t/extra", "", "", false},
		{"homeassistant/valve/garden/main/config", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			id, suffix, ok := ns.ParseDataTopic(tt.topic)
			if ok != tt.wantOK || id != tt.wantID || suffix != tt.wantSuffix {
				t.Errorf("ParseDataTopic(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.topic, id, suffix, ok, tt.wantID, tt.wantSuffix, tt.wantOK)
			}
		})
	}
}

func TestParseDataTopicRoundTrip(t *testing.T) {
	ns := testNamespace()
	id, suffix, ok := ns.ParseDataTopic(ns.DataTopic("pump-valve", CommandTopic))
	if !ok || id != "pump-valve" || suffix != CommandTopic {
		t.Errorf("round trip = (%q, %q, %v)", id, suffix, ok)
	}
}

func TestNamespaceValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Namespace)
		wantErr bool
	}{
		{"valid", func(*Namespace) {}, false},
		{"empty discovery prefix", func(ns *Namespace) { ns.DiscoveryPrefix = "" }, true},
		{"empty data prefix", func(ns *Namespace) { ns.DataPrefix = "" }, true},
		{"empty device", func(ns *Namespace) { ns.DeviceID = "" }, true},
		{"plus wildcard", func(ns *Namespace) { ns.DeviceID = "gar+den" }, true},
		{"hash wildcard", func(ns *Namespace) { ns.DataPrefix = "gl/#" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns := testNamespace()
			tt.mutate(&ns)
			err := ns.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidNamespace) {
				t.Errorf("Validate() error = %v, want ErrInvalidNamespace", err)
			}
		})
	}
}
