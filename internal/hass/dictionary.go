package hass

// Component names.
const (
	ComponentValve = "valve"
)

// Discovery property names (Home Assistant abbreviations).
const (
	PropertyName              = "name"
	PropertyObjectID          = "obj_id"
	PropertyUniqueID          = "uniq_id"
	PropertyDeviceClass       = "dev_cla"
	PropertyIcon              = "ic"
	PropertyPositionOpen      = "pos_open"
	PropertyPositionClosed    = "pos_clsd"
	PropertyReportsPosition   = "reports_position"
	PropertyPayloadStop       = "pl_stop"
	PropertyRetain            = "ret"
	PropertyOptimistic        = "opt"
	PropertyDevice            = "dev"
	PropertyAvailabilityTopic = "avty_t"
)

// Data topic suffixes. They double as the discovery keys of the topics.
const (
	StateTopic        = "stat_t"
	CommandTopic      = "cmd_t"
	AvailabilityTopic = "avty_t"
)

// Keys of the combined JSON state payload.
const (
	StateProperty    = "state"
	PositionProperty = "position"
)

// Payload tokens.
const (
	ClosedState  = "closed"
	ClosingState = "closing"
	OpenState    = "open"
	OpeningState = "opening"

	CloseCommand = "close"
	OpenCommand  = "open"
	StopCommand  = "stop"

	AvailabilityOnline  = "online"
	AvailabilityOffline = "offline"
)
