package gamepad

import (
	"fmt"
	"time"
)

// ControllerID identifies one controller for the lifetime of a source.
type ControllerID string

// Button is a logical gamepad button, independent of the device layout.
type Button uint8

const (
	ButtonUnknown Button = iota
	ButtonSouth
	ButtonEast
	ButtonNorth
	ButtonWest
	ButtonLeftTrigger
	ButtonRightTrigger
	ButtonLeftTrigger2
	ButtonRightTrigger2
	ButtonSelect
	ButtonStart
	ButtonMode
	ButtonLeftThumb
	ButtonRightThumb
	ButtonDPadUp
	ButtonDPadDown
	ButtonDPadLeft
	ButtonDPadRight

	buttonCount
)

var buttonNames = [buttonCount]string{
	"unknown", "south", "east", "north", "west",
	"lt", "rt", "lt2", "rt2",
	"select", "start", "mode", "l3", "r3",
	"dpad_up", "dpad_down", "dpad_left", "dpad_right",
}

func (b Button) String() string {
	if b < buttonCount {
		return buttonNames[b]
	}
	return fmt.Sprintf("button(%d)", uint8(b))
}

// Buttons returns every known button in declaration order.
func Buttons() []Button {
	out := make([]Button, 0, buttonCount-1)
	for b := ButtonSouth; b < buttonCount; b++ {
		out = append(out, b)
	}
	return out
}

// Axis is a logical analog axis.
type Axis uint8

const (
	AxisUnknown Axis = iota
	AxisLeftStickX
	AxisLeftStickY
	AxisLeftZ
	AxisRightStickX
	AxisRightStickY
	AxisRightZ

	axisCount
)

var axisNames = [axisCount]string{
	"unknown", "left_x", "left_y", "left_z", "right_x", "right_y", "right_z",
}

func (a Axis) String() string {
	if a < axisCount {
		return axisNames[a]
	}
	return fmt.Sprintf("axis(%d)", uint8(a))
}

// Axes returns every known axis in declaration order.
func Axes() []Axis {
	out := make([]Axis, 0, axisCount-1)
	for a := AxisLeftStickX; a < axisCount; a++ {
		out = append(out, a)
	}
	return out
}

// EventKind tags the payload of an Event.
type EventKind uint8

const (
	ButtonPressed EventKind = iota + 1
	ButtonReleased
	ButtonChanged
	AxisChanged
	Connected
	Disconnected
)

func (k EventKind) String() string {
	switch k {
	case ButtonPressed:
		return "pressed"
	case ButtonReleased:
		return "released"
	case ButtonChanged:
		return "button_changed"
	case AxisChanged:
		return "axis_changed"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Event is one normalized input event tagged with its controller.
// Value is in [0,1] for ButtonChanged and [-1,1] for AxisChanged.
type Event struct {
	Controller ControllerID
	Kind       EventKind
	Button     Button
	Axis       Axis
	Value      float64
	Time       time.Time
}

func (e Event) String() string {
	switch e.Kind {
	case ButtonPressed, ButtonReleased:
		return fmt.Sprintf("%s %s %s", e.Controller, e.Kind, e.Button)
	case ButtonChanged:
		return fmt.Sprintf("%s %s %s=%.3f", e.Controller, e.Kind, e.Button, e.Value)
	case AxisChanged:
		return fmt.Sprintf("%s %s %s=%.3f", e.Controller, e.Kind, e.Axis, e.Value)
	}
	return fmt.Sprintf("%s %s", e.Controller, e.Kind)
}

// Info describes a controller offered by a source.
type Info struct {
	ID      ControllerID `json:"id"`
	Name    string       `json:"name"`
	Path    string       `json:"path"`
	Vendor  uint16       `json:"vendor"`
	Product uint16       `json:"product"`
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s, %04X:%04X) @ %s", i.Name, i.ID, i.Vendor, i.Product, i.Path)
}
