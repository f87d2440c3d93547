// Package valve implements a Home Assistant MQTT valve entity.
//
// A Valve holds the state and optional position of one valve, publishes
// them on its state topic, describes itself through a discovery document
// and decodes open, close, stop and position commands from its command
// topic into typed Commands for a single registered handler.
//
// Everything outside the entity itself (topic names, discovery encoding,
// availability and the MQTT connection) is reached through a hass.Bus.
//
// # Updates
//
//	v := valve.New(node, "main-valve", valve.Features{PositionReporting: true})
//	node.Do(func() {
//	    err = v.SetStateWithPosition(valve.StateOpen, valve.PositionAt(42))
//	})
//
// Every update validates its input, skips the publish when nothing changed
// (unless Force is passed) and stores the new value only once the publish
// succeeded. Failed updates leave the valve untouched.
//
// # Concurrency
//
// A Valve is not safe for concurrent use. Register it with a hass.Node and
// call it only from inside Node.Do or its own callbacks.
package valve
