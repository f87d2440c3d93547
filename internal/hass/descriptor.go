package hass

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// entryKind distinguishes literal properties from the ones resolved while encoding.
type entryKind uint8

const (
	entryValue entryKind = iota
	entryUniqueID
	entryDevice
	entryAvailability
	entryTopic
)

type entry struct {
	kind  entryKind
	key   string
	value any
}

// Descriptor is the ordered set of discovery properties of one entity.
//
// Literal values are added with Set. Properties that depend on the device or
// on the topic namespace (unique ID, device block, availability and data
// topics) are recorded as markers and resolved by Encode, so the same
// descriptor can be re-sent after the namespace is known.
//
// Keys are unique: setting an existing key replaces its value in place.
type Descriptor struct {
	component string
	uniqueID  string
	entries   []entry
}

// EncodeContext carries what Encode needs to resolve markers.
type EncodeContext struct {
	Namespace Namespace
	Device    DeviceInfo

	// ExtendedUniqueIDs prefixes uniq_id with the device ID so entities of
	// different devices may reuse unique IDs.
	ExtendedUniqueIDs bool
}

// NewDescriptor creates an empty descriptor for an entity.
func NewDescriptor(component, uniqueID string) *Descriptor {
	return &Descriptor{component: component, uniqueID: uniqueID}
}

// Component returns the Home Assistant component (platform) name.
func (d *Descriptor) Component() string { return d.component }

// UniqueID returns the unique ID of the described entity.
func (d *Descriptor) UniqueID() string { return d.uniqueID }

// Set adds a literal property. Values must be JSON-marshalable.
func (d *Descriptor) Set(key string, value any) {
	d.put(entry{kind: entryValue, key: key, value: value})
}

// WithUniqueID adds the uniq_id property.
func (d *Descriptor) WithUniqueID() {
	d.put(entry{kind: entryUniqueID, key: PropertyUniqueID})
}

// WithDevice adds the device block.
func (d *Descriptor) WithDevice() {
	d.put(entry{kind: entryDevice, key: PropertyDevice})
}

// WithAvailability adds the shared availability topic.
func (d *Descriptor) WithAvailability() {
	d.put(entry{kind: entryAvailability, key: PropertyAvailabilityTopic})
}

// Topic adds a data topic of the entity under its suffix as key.
func (d *Descriptor) Topic(suffix string) {
	d.put(entry{kind: entryTopic, key: suffix})
}

func (d *Descriptor) put(e entry) {
	for i := range d.entries {
		if d.entries[i].key == e.key {
			d.entries[i] = e
			return
		}
	}
	d.entries = append(d.entries, e)
}

// Keys returns the property keys in encoding order.
func (d *Descriptor) Keys() []string {
	keys := make([]string, len(d.entries))
	for i, e := range d.entries {
		keys[i] = e.key
	}
	return keys
}

// Value returns the literal value stored under key. Markers report ok with a nil value.
func (d *Descriptor) Value(key string) (any, bool) {
	for _, e := range d.entries {
		if e.key == key {
			return e.value, true
		}
	}
	return nil, false
}

// Encode renders the discovery document as a JSON object, keys in insertion order.
func (d *Descriptor) Encode(ctx EncodeContext) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.key)
		if err != nil {
			return nil, fmt.Errorf("encoding key %q: %w", e.key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')

		value, err := json.Marshal(d.resolve(e, ctx))
		if err != nil {
			return nil, fmt.Errorf("encoding %q: %w", e.key, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *Descriptor) resolve(e entry, ctx EncodeContext) any {
	switch e.kind {
	case entryUniqueID:
		if ctx.ExtendedUniqueIDs {
			return ctx.Namespace.DeviceID + "_" + d.uniqueID
		}
		return d.uniqueID
	case entryDevice:
		return ctx.Device
	case entryAvailability:
		return ctx.Namespace.AvailabilityTopic()
	case entryTopic:
		return ctx.Namespace.DataTopic(d.uniqueID, e.key)
	default:
		return e.value
	}
}
