package valve

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/nerrad567/gray-logic-valve/internal/hass"
)

// Default position thresholds.
const (
	DefaultPositionOpen   int16 = 100
	DefaultPositionClosed int16 = 0
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Valve is a Home Assistant valve entity.
type Valve struct {
	bus      hass.Bus
	uniqueID string
	features Features

	name        string
	objectID    string
	deviceClass string
	icon        string
	retain      bool
	optimistic  bool

	positionOpen   int16
	positionClosed int16

	state    State
	position Position

	handler CommandHandler
	logger  Logger

	descriptor func() *hass.Descriptor
}

var _ hass.Entity = (*Valve)(nil)

// New creates a valve publishing through bus. The unique ID cannot change
// afterwards; a valve with an empty unique ID never announces itself.
func New(bus hass.Bus, uniqueID string, features Features) *Valve {
	v := &Valve{
		bus:            bus,
		uniqueID:       uniqueID,
		features:       features,
		positionOpen:   DefaultPositionOpen,
		positionClosed: DefaultPositionClosed,
	}
	v.descriptor = sync.OnceValue(v.buildDescriptor)
	return v
}

// UniqueID implements hass.Entity.
func (v *Valve) UniqueID() string { return v.uniqueID }

// Features returns the capabilities the valve was created with.
func (v *Valve) Features() Features { return v.features }

// State returns the stored state.
func (v *Valve) State() State { return v.state }

// Position returns the stored position.
func (v *Valve) Position() Position { return v.position }

func (v *Valve) Name() string          { return v.name }
func (v *Valve) ObjectID() string      { return v.objectID }
func (v *Valve) DeviceClass() string   { return v.deviceClass }
func (v *Valve) Icon() string          { return v.icon }
func (v *Valve) Retain() bool          { return v.retain }
func (v *Valve) Optimistic() bool      { return v.optimistic }
func (v *Valve) PositionOpen() int16   { return v.positionOpen }
func (v *Valve) PositionClosed() int16 { return v.positionClosed }

// The setters below shape the discovery document and must be called before
// the first connection; the document is built once.

// SetName sets the display name.
func (v *Valve) SetName(name string) { v.name = name }

// SetObjectID sets the object ID Home Assistant derives the entity ID from.
func (v *Valve) SetObjectID(id string) { v.objectID = id }

// SetDeviceClass sets the device class, e.g. "water" or "gas".
func (v *Valve) SetDeviceClass(class string) { v.deviceClass = class }

// SetIcon sets the icon, e.g. "mdi:valve".
func (v *Valve) SetIcon(icon string) { v.icon = icon }

// SetRetain asks Home Assistant to retain the commands it sends. A retained
// valve does not republish its state on reconnect.
func (v *Valve) SetRetain(retain bool) { v.retain = retain }

// SetOptimistic makes Home Assistant assume commands succeed.
func (v *Valve) SetOptimistic(optimistic bool) { v.optimistic = optimistic }

// SetPositionOpen sets the position reported when fully open.
func (v *Valve) SetPositionOpen(p int16) { v.positionOpen = p }

// SetPositionClosed sets the position reported when fully closed.
func (v *Valve) SetPositionClosed(p int16) { v.positionClosed = p }

// OnCommand registers the command handler, replacing any previous one.
func (v *Valve) OnCommand(h CommandHandler) { v.handler = h }

// SetLogger sets a logger for connect sequence failures and dropped commands.
func (v *Valve) SetLogger(l Logger) { v.logger = l }

// SetCurrentState stores state without publishing it.
func (v *Valve) SetCurrentState(state State) { v.state = state }

// SetCurrentPosition stores position without publishing it.
func (v *Valve) SetCurrentPosition(position Position) { v.position = position }

// UpdateOption modifies a single update.
type UpdateOption func(*updateOptions)

type updateOptions struct {
	force bool
}

// Force publishes even when the value did not change.
func Force() UpdateOption {
	return func(o *updateOptions) { o.force = true }
}

func applyOptions(opts []UpdateOption) updateOptions {
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SetState publishes state and stores it.
//
// With position reporting the stored position is published along with it,
// so the position must have been set before.
func (v *Valve) SetState(state State, opts ...UpdateOption) error {
	o := applyOptions(opts)
	if !state.IsKnown() {
		return ErrUnknownState
	}
	if !o.force && state == v.state {
		return nil
	}

	kind := kindState
	if v.features.PositionReporting {
		kind = kindCombined
	}
	if err := v.publish(kind, state, v.position); err != nil {
		return err
	}
	v.state = state
	return nil
}

// SetPosition publishes position and stores it.
func (v *Valve) SetPosition(position Position, opts ...UpdateOption) error {
	o := applyOptions(opts)
	if !v.features.PositionReporting {
		return ErrPositionUnsupported
	}
	if !position.IsSet() {
		return ErrPositionUnset
	}
	if !o.force && position == v.position {
		return nil
	}

	if err := v.publish(kindPosition, StateUnknown, position); err != nil {
		return err
	}
	v.position = position
	return nil
}

// SetStateWithPosition publishes state and position in one message and
// stores both, or neither when it fails.
func (v *Valve) SetStateWithPosition(state State, position Position, opts ...UpdateOption) error {
	o := applyOptions(opts)
	if !state.IsKnown() {
		return ErrUnknownState
	}
	if !v.features.PositionReporting {
		return ErrPositionUnsupported
	}
	if !position.IsSet() {
		return ErrPositionUnset
	}
	if !o.force && state == v.state && position == v.position {
		return nil
	}

	if err := v.publish(kindCombined, state, position); err != nil {
		return err
	}
	v.state = state
	v.position = position
	return nil
}

// publishKind selects the shape of a state payload.
type publishKind uint8

const (
	kindState publishKind = iota
	kindPosition
	kindCombined
)

func (k publishKind) needsState() bool    { return k != kindPosition }
func (k publishKind) needsPosition() bool { return k != kindState }

// formatPayload renders a state payload:
//
//	open
//	42
//	{"state":"open","position":42}
func (v *Valve) formatPayload(kind publishKind, state State, position Position) ([]byte, error) {
	var token, number string
	if kind.needsState() {
		if !state.IsKnown() {
			return nil, ErrUnknownState
		}
		token = state.Token()
	}
	if kind.needsPosition() {
		if !v.features.PositionReporting {
			return nil, ErrPositionUnsupported
		}
		p, ok := position.Value()
		if !ok {
			return nil, ErrPositionUnset
		}
		number = strconv.Itoa(int(p))
	}

	switch kind {
	case kindState:
		return []byte(token), nil
	case kindPosition:
		return []byte(number), nil
	default:
		return fmt.Appendf(nil, `{"%s":"%s","%s":%s}`,
			hass.StateProperty, token, hass.PositionProperty, number), nil
	}
}

func (v *Valve) publish(kind publishKind, state State, position Position) error {
	payload, err := v.formatPayload(kind, state, position)
	if err != nil {
		return err
	}
	if err := v.bus.PublishOnDataTopic(v.uniqueID, hass.StateTopic, payload, true); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

func (v *Valve) debug(msg string, args ...any) {
	if v.logger != nil {
		v.logger.Debug(msg, append([]any{"unique_id", v.uniqueID}, args...)...)
	}
}

func (v *Valve) warn(msg string, args ...any) {
	if v.logger != nil {
		v.logger.Warn(msg, append([]any{"unique_id", v.uniqueID}, args...)...)
	}
}
