package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-valve/internal/actuator"
	"github.com/nerrad567/gray-logic-valve/internal/hass"
	"github.com/nerrad567/gray-logic-valve/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-valve/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-valve/internal/metrics"
	"github.com/nerrad567/gray-logic-valve/internal/snapshot"
	"github.com/nerrad567/gray-logic-valve/internal/valve"
)

// actuateTimeout bounds a single actuator call.
const actuateTimeout = 10 * time.Second

// Event channels broadcast to WebSocket clients.
const (
	EventCommand = "valve.command"
	EventState   = "valve.state"
)

// Update operations, as counted in metrics.
const (
	OpSetState             = "set_state"
	OpSetPosition          = "set_position"
	OpSetStateWithPosition = "set_state_with_position"
)

var allStates = []string{
	valve.StateClosed.Token(),
	valve.StateClosing.Token(),
	valve.StateOpen.Token(),
	valve.StateOpening.Token(),
}

// Store persists accepted updates and restores the last one.
type Store interface {
	Record(ctx context.Context, uniqueID string, state valve.State, position valve.Position, source string) error
	Load(ctx context.Context, uniqueID string) (snapshot.Snapshot, error)
}

// Telemetry receives accepted updates and decoded commands.
type Telemetry interface {
	WriteValveState(s influxdb.ValveSample)
	WriteValveCommand(uniqueID, kind string, position int16)
}

// Broadcaster fans events out to live clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Deps holds the collaborators of a Controller. Node, Valve, Actuator and
// Logger are required; the rest may be nil.
type Deps struct {
	Node      *hass.Node
	Valve     *valve.Valve
	Actuator  actuator.Actuator
	Store     Store
	Telemetry Telemetry
	Metrics   *metrics.Metrics
	Events    Broadcaster
	Logger    *logging.Logger
}

// Controller handles commands for one valve and records its updates.
type Controller struct {
	node      *hass.Node
	valve     *valve.Valve
	actuator  actuator.Actuator
	store     Store
	telemetry Telemetry
	metrics   *metrics.Metrics
	events    Broadcaster
	logger    *logging.Logger
}

// New registers the valve with the node and installs the command handler.
func New(deps Deps) (*Controller, error) {
	switch {
	case deps.Node == nil:
		return nil, fmt.Errorf("node is required")
	case deps.Valve == nil:
		return nil, fmt.Errorf("valve is required")
	case deps.Actuator == nil:
		return nil, fmt.Errorf("actuator is required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	}

	c := &Controller{
		node:      deps.Node,
		valve:     deps.Valve,
		actuator:  deps.Actuator,
		store:     deps.Store,
		telemetry: deps.Telemetry,
		metrics:   deps.Metrics,
		events:    deps.Events,
		logger:    deps.Logger.Component("controller").With("unique_id", deps.Valve.UniqueID()),
	}

	if err := c.node.Register(c.valve); err != nil {
		return nil, err
	}
	c.node.Do(func() {
		c.valve.OnCommand(c.handleCommand)
	})

	return c, nil
}

// Restore applies the stored snapshot to the valve without publishing it.
// The next connect sequence republishes it. A missing snapshot is not an error.
func (c *Controller) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	snap, err := c.store.Load(ctx, c.valve.UniqueID())
	if errors.Is(err, snapshot.ErrNotFound) {
		c.logger.Debug("no snapshot to restore")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}

	c.node.Do(func() {
		c.valve.SetCurrentState(snap.State)
		if c.valve.Features().PositionReporting {
			c.valve.SetCurrentPosition(snap.Position)
		}
	})
	c.logger.Info("snapshot restored", "state", snap.State, "position", snap.Position, "updated_at", snap.UpdatedAt)
	return nil
}

// HandleConnect runs the node's connect sequence. Install it as the MQTT
// client's OnConnect callback.
func (c *Controller) HandleConnect() {
	c.node.HandleConnect()
	c.metrics.Connected()
	c.logger.Info("announced to home assistant")
}

// Update is a local state or position change.
type Update struct {
	State    valve.State
	Position valve.Position
	Force    bool
}

// Apply publishes u and records it. The operation is chosen by which fields
// are set: a known state, a set position, or both.
func (c *Controller) Apply(ctx context.Context, u Update, source string) error {
	var err error
	c.node.Do(func() {
		err = c.apply(ctx, u, source)
	})
	return err
}

// apply must be called with the node lock held.
func (c *Controller) apply(ctx context.Context, u Update, source string) error {
	var opts []valve.UpdateOption
	if u.Force {
		opts = append(opts, valve.Force())
	}

	prevState, prevPosition := c.valve.State(), c.valve.Position()

	var (
		op  string
		err error
	)
	switch hasState, hasPosition := u.State.IsKnown(), u.Position.IsSet(); {
	case hasState && hasPosition:
		op = OpSetStateWithPosition
		err = c.valve.SetStateWithPosition(u.State, u.Position, opts...)
	case hasState:
		op = OpSetState
		err = c.valve.SetState(u.State, opts...)
	case hasPosition:
		op = OpSetPosition
		err = c.valve.SetPosition(u.Position, opts...)
	default:
		return ErrEmptyUpdate
	}

	c.metrics.UpdateFinished(op, err)
	if err != nil {
		return err
	}
	if !u.Force && c.valve.State() == prevState && c.valve.Position() == prevPosition {
		return nil
	}
	c.record(ctx, source)
	return nil
}

// record stores and distributes the valve's current state. Storage failures
// are logged; the update has already been published.
func (c *Controller) record(ctx context.Context, source string) {
	state, position := c.valve.State(), c.valve.Position()
	uid := c.valve.UniqueID()

	if c.store != nil {
		if err := c.store.Record(ctx, uid, state, position, source); err != nil {
			c.logger.Warn("recording update failed", "error", err)
		}
	}

	sample := influxdb.ValveSample{
		UniqueID: uid,
		State:    state.String(),
		Source:   source,
		Time:     time.Now(),
	}
	if p, ok := position.Value(); ok {
		sample.Position, sample.HasPosition = p, true
		c.metrics.SetPosition(p)
	}
	if c.telemetry != nil {
		c.telemetry.WriteValveState(sample)
	}
	c.metrics.SetState(uid, state.Token(), allStates)

	if c.events != nil {
		c.events.Broadcast(EventState, viewOf(c.valve))
	}
}

// View returns a snapshot of the valve.
func (c *Controller) View() View {
	var v View
	c.node.Do(func() {
		v = viewOf(c.valve)
	})
	return v
}

// UniqueID returns the unique id of the controlled valve.
func (c *Controller) UniqueID() string {
	return c.valve.UniqueID()
}
