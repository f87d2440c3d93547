// Package hass exposes entities to Home Assistant through MQTT discovery.
//
// It owns everything an entity needs from its surroundings but should not
// know about: topic naming, the JSON shape of discovery documents, the
// device block shared by all entities, availability and routing of inbound
// messages back to the entity that subscribed to them.
//
// # Topics
//
// Discovery documents are published to
//
//	<discovery_prefix>/<component>/<device_id>/<unique_id>/config
//
// and entity data flows over
//
//	<data_prefix>/<device_id>/<unique_id>/<suffix>
//
// where suffix is one of the short property names Home Assistant uses for
// topic keys (stat_t, cmd_t). Availability is shared by the whole device on
// <data_prefix>/<device_id>/avty_t and doubles as the MQTT Last Will topic.
//
// # Concurrency
//
// Entities are not safe for concurrent use. A Node runs every entity entry
// point (connect sequence, inbound messages and application work passed to
// Do) under one mutex, so entities see a single logical caller.
package hass
