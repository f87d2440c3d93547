package valve

import "github.com/nerrad567/gray-logic-valve/internal/hass"

// Descriptor returns the discovery document of the valve, building it on the
// first call. It reports false when the valve has no unique ID.
func (v *Valve) Descriptor() (*hass.Descriptor, bool) {
	if v.uniqueID == "" {
		return nil, false
	}
	return v.descriptor(), true
}

func (v *Valve) buildDescriptor() *hass.Descriptor {
	d := hass.NewDescriptor(hass.ComponentValve, v.uniqueID)
	if v.name != "" {
		d.Set(hass.PropertyName, v.name)
	}
	if v.objectID != "" {
		d.Set(hass.PropertyObjectID, v.objectID)
	}
	d.WithUniqueID()
	if v.deviceClass != "" {
		d.Set(hass.PropertyDeviceClass, v.deviceClass)
	}
	if v.icon != "" {
		d.Set(hass.PropertyIcon, v.icon)
	}
	if v.positionOpen != DefaultPositionOpen {
		d.Set(hass.PropertyPositionOpen, v.positionOpen)
	}
	if v.positionClosed != DefaultPositionClosed {
		d.Set(hass.PropertyPositionClosed, v.positionClosed)
	}
	if v.features.PositionReporting {
		d.Set(hass.PropertyReportsPosition, true)
	}
	if v.features.StopSupport {
		d.Set(hass.PropertyPayloadStop, hass.StopCommand)
	}
	if v.retain {
		d.Set(hass.PropertyRetain, true)
	}
	if v.optimistic {
		d.Set(hass.PropertyOptimistic, true)
	}
	d.WithDevice()
	d.WithAvailability()
	d.Topic(hass.StateTopic)
	d.Topic(hass.CommandTopic)
	return d
}
