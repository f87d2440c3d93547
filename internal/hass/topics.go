package hass

import (
	"fmt"
	"strings"
)

// Default topic prefixes.
const (
	DefaultDiscoveryPrefix = "homeassistant"
	DefaultDataPrefix      = "graylogic"
)

// Namespace builds the MQTT topics of one device and its entities.
//
//	ns := hass.Namespace{DiscoveryPrefix: "homeassistant", DataPrefix: "graylogic", DeviceID: "garden"}
//	ns.DataTopic("main-valve", hass.StateTopic)
//	// Returns: "graylogic/garden/main-valve/stat_t"
type Namespace struct {
	DiscoveryPrefix string
	DataPrefix      string
	DeviceID        string
}

// ConfigTopic returns the discovery topic of an entity.
//
// Example: homeassistant/valve/garden/main-valve/config
func (ns Namespace) ConfigTopic(component, uniqueID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", ns.DiscoveryPrefix, component, ns.DeviceID, uniqueID)
}

// DataTopic returns a data topic of an entity.
//
// Example: graylogic/garden/main-valve/cmd_t
func (ns Namespace) DataTopic(uniqueID, suffix string) string {
	return fmt.Sprintf("%s/%s/%s/%s", ns.DataPrefix, ns.DeviceID, uniqueID, suffix)
}

// AvailabilityTopic returns the availability topic shared by all entities of the device.
//
// Example: graylogic/garden/avty_t
func (ns Namespace) AvailabilityTopic() string {
	return fmt.Sprintf("%s/%s/%s", ns.DataPrefix, ns.DeviceID, AvailabilityTopic)
}

// ParseDataTopic splits a data topic of this device into the entity's unique ID
// and the topic suffix. It reports false for topics outside the namespace.
func (ns Namespace) ParseDataTopic(topic string) (uniqueID, suffix string, ok bool) {
	prefix := ns.DataPrefix + "/" + ns.DeviceID + "/"
	rest, found := strings.CutPrefix(topic, prefix)
	if !found {
		return "", "", false
	}
	uniqueID, suffix, found = strings.Cut(rest, "/")
	if !found || uniqueID == "" || suffix == "" || strings.Contains(suffix, "/") {
		return "", "", false
	}
	return uniqueID, suffix, true
}

// Validate reports a namespace that cannot produce well-formed topics.
func (ns Namespace) Validate() error {
	for name, v := range map[string]string{
		"discovery prefix": ns.DiscoveryPrefix,
		"data prefix":      ns.DataPrefix,
		"device id":        ns.DeviceID,
	} {
		if v == "" {
			return fmt.Errorf("%w: %s is empty", ErrInvalidNamespace, name)
		}
		if strings.ContainsAny(v, "+#") {
			return fmt.Errorf("%w: %s %q contains a wildcard", ErrInvalidNamespace, name, v)
		}
	}
	return nil
}
