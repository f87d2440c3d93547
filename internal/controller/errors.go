package controller

import "errors"

var (
	// ErrEmptyUpdate is returned by Apply when the update names neither a
	// state nor a position.
	ErrEmptyUpdate = errors.New("controller: update has no state or position")

	// ErrActuatorFailed wraps actuator errors raised while handling a command.
	ErrActuatorFailed = errors.New("controller: actuator failed")
)
