package valve

import (
	"bytes"
	"strconv"

	"github.com/nerrad567/gray-logic-valve/internal/hass"
)

var (
	closeToken = []byte(hass.CloseCommand)
	openToken  = []byte(hass.OpenCommand)
	stopToken  = []byte(hass.StopCommand)
)

// decodeCommand decodes a command payload. Tokens match exactly; numbers are
// only accepted when positions is true.
func decodeCommand(payload []byte, positions bool) (Command, bool) {
	switch {
	case bytes.Equal(payload, closeToken):
		return Command{Kind: CommandClose}, true
	case bytes.Equal(payload, openToken):
		return Command{Kind: CommandOpen}, true
	case bytes.Equal(payload, stopToken):
		return Command{Kind: CommandStop}, true
	}
	if !positions {
		return Command{}, false
	}
	n, err := strconv.ParseInt(string(payload), 10, 16)
	if err != nil {
		return Command{}, false
	}
	return Command{Kind: CommandSetPosition, Position: int16(n)}, true
}

// OnMessage implements hass.Entity. Commands are passed to the registered
// handler; anything else is dropped.
func (v *Valve) OnMessage(suffix string, payload []byte) {
	if suffix != hass.CommandTopic || v.handler == nil {
		return
	}
	cmd, ok := decodeCommand(payload, v.features.PositionReporting)
	if !ok {
		v.debug("dropping unrecognized command", "payload", string(payload))
		return
	}
	v.handler(cmd, v)
}

// OnConnected implements hass.Entity. It announces the valve, republishes
// its state unless retained and subscribes to commands.
func (v *Valve) OnConnected() {
	if v.uniqueID == "" {
		return
	}

	if d, ok := v.Descriptor(); ok {
		if err := v.bus.PublishConfig(d); err != nil {
			v.warn("publishing discovery failed", "error", err)
		}
	}
	if err := v.bus.PublishAvailability(v.uniqueID); err != nil {
		v.warn("publishing availability failed", "error", err)
	}

	if !v.retain {
		kind := kindState
		if v.features.PositionReporting {
			kind = kindCombined
		}
		if err := v.publish(kind, v.state, v.position); err != nil {
			v.debug("state not republished", "error", err)
		}
		if v.features.PositionReporting {
			if err := v.publish(kindPosition, StateUnknown, v.position); err != nil {
				v.debug("position not republished", "error", err)
			}
		}
	}

	if err := v.bus.SubscribeDataTopic(v.uniqueID, hass.CommandTopic); err != nil {
		v.warn("subscribing to commands failed", "error", err)
	}
}
