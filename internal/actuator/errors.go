package actuator

import "errors"

var (
	// ErrUnsupported is returned for a command the actuator is not wired for.
	ErrUnsupported = errors.New("actuator: operation not supported")

	// ErrUnknownType is returned by New for an unrecognised actuator type.
	ErrUnknownType = errors.New("actuator: unknown type")

	// ErrWriteFailed wraps Modbus write failures.
	ErrWriteFailed = errors.New("actuator: write failed")
)
