package valve

import "errors"

// Domain-specific errors for valve updates.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnknownState is returned when an update carries StateUnknown.
	ErrUnknownState = errors.New("valve: state is unknown")

	// ErrPositionUnset is returned when an update carries NoPosition.
	ErrPositionUnset = errors.New("valve: position is not set")

	// ErrPositionUnsupported is returned for position updates on a valve
	// without position reporting.
	ErrPositionUnsupported = errors.New("valve: position reporting not enabled")

	// ErrPublishFailed wraps the bus error when publishing the state fails.
	ErrPublishFailed = errors.New("valve: publish failed")
)
