package hass

import "errors"

var (
	// ErrInvalidNamespace is returned when a topic prefix or device ID is unusable.
	ErrInvalidNamespace = errors.New("hass: invalid namespace")

	// ErrInvalidEntity is returned when registering an entity without a unique ID.
	ErrInvalidEntity = errors.New("hass: entity has no unique id")

	// ErrDuplicateEntity is returned when two entities share a unique ID.
	ErrDuplicateEntity = errors.New("hass: duplicate entity")

	// ErrNoBroker is returned when publishing before a broker is attached.
	ErrNoBroker = errors.New("hass: no broker")
)
