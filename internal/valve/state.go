package valve

import (
	"fmt"
	"strconv"

	"github.com/nerrad567/gray-logic-valve/internal/hass"
)

// State is the discrete state of a valve.
//
// The zero value is StateUnknown. Other values can only be obtained from the
// package variables or ParseState, so a State is always one of the five.
type State struct {
	token string
}

// Valve states.
var (
	StateUnknown = State{}
	StateClosed  = State{token: hass.ClosedState}
	StateClosing = State{token: hass.ClosingState}
	StateOpen    = State{token: hass.OpenState}
	StateOpening = State{token: hass.OpeningState}
)

// IsKnown reports whether s may be published.
func (s State) IsKnown() bool { return s.token != "" }

// Token returns the payload token of s, empty for StateUnknown.
func (s State) Token() string { return s.token }

func (s State) String() string {
	if s.token == "" {
		return "unknown"
	}
	return s.token
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseState returns the state named by token. "unknown" and the empty
// string yield StateUnknown.
func ParseState(token string) (State, error) {
	switch token {
	case hass.ClosedState:
		return StateClosed, nil
	case hass.ClosingState:
		return StateClosing, nil
	case hass.OpenState:
		return StateOpen, nil
	case hass.OpeningState:
		return StateOpening, nil
	case "", "unknown":
		return StateUnknown, nil
	default:
		return StateUnknown, fmt.Errorf("%w: %q", ErrUnknownState, token)
	}
}

// Position is an optional valve position, in percent open when between the
// closed and open thresholds.
type Position struct {
	value int16
	set   bool
}

// NoPosition is the unset position.
var NoPosition = Position{}

// PositionAt returns a set position.
func PositionAt(v int16) Position {
	return Position{value: v, set: true}
}

// Value returns the position and whether it is set.
func (p Position) Value() (int16, bool) { return p.value, p.set }

// IsSet reports whether p holds a value.
func (p Position) IsSet() bool { return p.set }

func (p Position) String() string {
	if !p.set {
		return "unset"
	}
	return strconv.Itoa(int(p.value))
}

// Features are the optional capabilities of a valve, fixed at construction.
type Features struct {
	// PositionReporting makes the valve report and accept a position.
	PositionReporting bool

	// StopSupport advertises the stop command.
	StopSupport bool
}

// CommandKind identifies a decoded command.
type CommandKind uint8

const (
	CommandOpen CommandKind = iota + 1
	CommandClose
	CommandStop
	CommandSetPosition
)

func (k CommandKind) String() string {
	switch k {
	case CommandOpen:
		return "open"
	case CommandClose:
		return "close"
	case CommandStop:
		return "stop"
	case CommandSetPosition:
		return "set_position"
	default:
		return "invalid"
	}
}

// Command is a decoded command. Position is only meaningful for CommandSetPosition.
type Command struct {
	Kind     CommandKind
	Position int16
}

func (c Command) String() string {
	if c.Kind == CommandSetPosition {
		return fmt.Sprintf("%s(%d)", c.Kind, c.Position)
	}
	return c.Kind.String()
}

// CommandHandler receives decoded commands together with the valve they target.
type CommandHandler func(cmd Command, v *Valve)
