package controller

import "github.com/nerrad567/gray-logic-valve/internal/valve"

// View is the JSON representation of a valve served by the API and
// broadcast on EventState.
type View struct {
	UniqueID          string `json:"unique_id"`
	Name              string `json:"name,omitempty"`
	State             string `json:"state"`
	Position          *int16 `json:"position,omitempty"`
	PositionReporting bool   `json:"position_reporting"`
	StopSupport       bool   `json:"stop_support"`
	Optimistic        bool   `json:"optimistic"`
	Retain            bool   `json:"retain"`
}

// CommandEvent is broadcast on EventCommand.
type CommandEvent struct {
	UniqueID string `json:"unique_id"`
	Command  string `json:"command"`
	Position *int16 `json:"position,omitempty"`
}

func viewOf(v *valve.Valve) View {
	f := v.Features()
	view := View{
		UniqueID:          v.UniqueID(),
		Name:              v.Name(),
		State:             v.State().String(),
		PositionReporting: f.PositionReporting,
		StopSupport:       f.StopSupport,
		Optimistic:        v.Optimistic(),
		Retain:            v.Retain(),
	}
	if p, ok := v.Position().Value(); ok {
		view.Position = &p
	}
	return view
}
