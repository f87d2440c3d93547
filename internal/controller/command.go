package controller

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-valve/internal/snapshot"
	"github.com/nerrad567/gray-logic-valve/internal/valve"
)

// handleCommand is the valve's command handler. It runs with the node lock
// held, so it calls apply directly.
func (c *Controller) handleCommand(cmd valve.Command, v *valve.Valve) {
	kind := cmd.Kind.String()
	c.logger.Debug("command received", "command", cmd)
	c.metrics.CommandReceived(kind)
	if c.telemetry != nil {
		c.telemetry.WriteValveCommand(v.UniqueID(), kind, cmd.Position)
	}
	if c.events != nil {
		c.events.Broadcast(EventCommand, CommandEvent{UniqueID: v.UniqueID(), Command: kind, Position: positionField(cmd)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), actuateTimeout)
	defer cancel()

	if err := c.actuate(ctx, cmd); err != nil {
		c.logger.Warn("actuating command failed", "command", cmd, "error", err)
		return
	}

	if v.Optimistic() {
		return
	}
	u, ok := confirmation(cmd, v)
	if !ok {
		return
	}
	if err := c.apply(ctx, u, snapshot.SourceCommand); err != nil {
		c.logger.Warn("confirming command failed", "command", cmd, "error", err)
	}
}

func (c *Controller) actuate(ctx context.Context, cmd valve.Command) error {
	var err error
	switch cmd.Kind {
	case valve.CommandOpen:
		err = c.actuator.Open(ctx)
	case valve.CommandClose:
		err = c.actuator.Close(ctx)
	case valve.CommandStop:
		err = c.actuator.Stop(ctx)
	case valve.CommandSetPosition:
		err = c.actuator.MoveTo(ctx, cmd.Position)
	default:
		return fmt.Errorf("%w: unknown command %v", ErrActuatorFailed, cmd.Kind)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrActuatorFailed, err)
	}
	return nil
}

// confirmation is the update reporting the outcome of cmd.
//
// Open and close move to the configured thresholds. Stop republishes what is
// stored, so it has nothing to confirm before the first update. A position
// counts as closed only at the closed threshold.
func confirmation(cmd valve.Command, v *valve.Valve) (Update, bool) {
	positions := v.Features().PositionReporting

	switch cmd.Kind {
	case valve.CommandOpen:
		u := Update{State: valve.StateOpen}
		if positions {
			u.Position = valve.PositionAt(v.PositionOpen())
		}
		return u, true
	case valve.CommandClose:
		u := Update{State: valve.StateClosed}
		if positions {
			u.Position = valve.PositionAt(v.PositionClosed())
		}
		return u, true
	case valve.CommandSetPosition:
		state := valve.StateOpen
		if cmd.Position == v.PositionClosed() {
			state = valve.StateClosed
		}
		return Update{State: state, Position: valve.PositionAt(cmd.Position)}, true
	default:
		if !v.State().IsKnown() || (positions && !v.Position().IsSet()) {
			return Update{}, false
		}
		return Update{State: v.State(), Force: true}, true
	}
}

func positionField(cmd valve.Command) *int16 {
	if cmd.Kind != valve.CommandSetPosition {
		return nil
	}
	p := cmd.Position
	return &p
}
