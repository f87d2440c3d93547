package hass

// DeviceInfo describes the physical device the entities belong to.
//
// Home Assistant groups every entity carrying the same identifiers under one
// device card. Only Identifiers is required.
type DeviceInfo struct {
	// Identifiers uniquely identifies the device, usually the device ID.
	Identifiers string `json:"ids"`

	// Name of the device.
	Name string `json:"name,omitempty"`

	// Manufacturer of the device.
	Manufacturer string `json:"mf,omitempty"`

	// Model of the device.
	Model string `json:"mdl,omitempty"`

	// SoftwareVersion running on the device.
	SoftwareVersion string `json:"sw,omitempty"`

	// ConfigurationURL is a link to a page for configuring the device.
	ConfigurationURL string `json:"cu,omitempty"`
}
