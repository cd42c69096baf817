// Package translate maps normalized gamepad controls to the codes and integer
// ranges of the virtual evdev device.
package translate

import (
	"math"

	evdev "github.com/holoplot/go-evdev"

	"github.com/soar/padmux/internal/gamepad"
)

// Deadzone is the magnitude below which an axis or trigger is not considered
// actively pushed.
const Deadzone = 0.1

// Output axis range advertised by the virtual device.
const (
	AbsMin int32 = 0
	AbsMax int32 = 65535
	AbsMid int32 = 32767
)

var buttonKeys = map[gamepad.Button]evdev.EvCode{
	gamepad.ButtonSouth:         evdev.BTN_SOUTH,
	gamepad.ButtonEast:          evdev.BTN_EAST,
	gamepad.ButtonNorth:         evdev.BTN_NORTH,
	gamepad.ButtonWest:          evdev.BTN_WEST,
	gamepad.ButtonLeftTrigger:   evdev.BTN_TL,
	gamepad.ButtonRightTrigger:  evdev.BTN_TR,
	gamepad.ButtonLeftTrigger2:  evdev.BTN_TL2,
	gamepad.ButtonRightTrigger2: evdev.BTN_TR2,
	gamepad.ButtonSelect:        evdev.BTN_SELECT,
	gamepad.ButtonStart:         evdev.BTN_START,
	gamepad.ButtonMode:          evdev.BTN_MODE,
	gamepad.ButtonLeftThumb:     evdev.BTN_THUMBL,
	gamepad.ButtonRightThumb:    evdev.BTN_THUMBR,
	gamepad.ButtonDPadUp:        evdev.BTN_DPAD_UP,
	gamepad.ButtonDPadDown:      evdev.BTN_DPAD_DOWN,
	gamepad.ButtonDPadLeft:      evdev.BTN_DPAD_LEFT,
	gamepad.ButtonDPadRight:     evdev.BTN_DPAD_RIGHT,
}

var buttonAxes = map[gamepad.Button]evdev.EvCode{
	gamepad.ButtonLeftTrigger2:  evdev.ABS_Z,
	gamepad.ButtonRightTrigger2: evdev.ABS_RZ,
	gamepad.ButtonDPadUp:        evdev.ABS_HAT0Y,
	gamepad.ButtonDPadDown:      evdev.ABS_HAT0Y,
	gamepad.ButtonDPadLeft:      evdev.ABS_HAT0X,
	gamepad.ButtonDPadRight:     evdev.ABS_HAT0X,
}

var axisAxes = map[gamepad.Axis]evdev.EvCode{
	gamepad.AxisLeftStickX:  evdev.ABS_X,
	gamepad.AxisLeftStickY:  evdev.ABS_Y,
	gamepad.AxisLeftZ:       evdev.ABS_Z,
	gamepad.AxisRightStickX: evdev.ABS_RX,
	gamepad.AxisRightStickY: evdev.ABS_RY,
	gamepad.AxisRightZ:      evdev.ABS_RZ,
}

// ScaleStick maps -1..1 onto the output range. Invert flips the direction,
// which turns the up-positive stick Y into evdev's down-positive one.
func ScaleStick(v float64, invert bool) int32 {
	if invert {
		v = -v
	}
	return clampAbs(math.Round((v + 1) * 32767.5))
}

// ScaleTrigger maps 0..1 onto the output range.
func ScaleTrigger(v float64) int32 {
	return clampAbs(math.Round(v * 65535))
}

func clampAbs(f float64) int32 {
	switch {
	case math.IsNaN(f), f < float64(AbsMin):
		return AbsMin
	case f > float64(AbsMax):
		return AbsMax
	}
	return int32(f)
}

// ButtonToKey returns the key code of b.
func ButtonToKey(b gamepad.Button) (evdev.EvCode, bool) {
	code, ok := buttonKeys[b]
	return code, ok
}

// ButtonToAxis returns the absolute axis a pressure button or D-pad
// direction drives.
func ButtonToAxis(b gamepad.Button) (evdev.EvCode, bool) {
	code, ok := buttonAxes[b]
	return code, ok
}

// AxisToAxis returns the absolute axis code of a.
func AxisToAxis(a gamepad.Axis) (evdev.EvCode, bool) {
	code, ok := axisAxes[a]
	return code, ok
}

// DPadAxisPair returns the negative and positive directions sharing b's
// output axis.
func DPadAxisPair(b gamepad.Button) ([2]gamepad.Button, bool) {
	switch b {
	case gamepad.ButtonDPadUp, gamepad.ButtonDPadDown:
		return [2]gamepad.Button{gamepad.ButtonDPadUp, gamepad.ButtonDPadDown}, true
	case gamepad.ButtonDPadLeft, gamepad.ButtonDPadRight:
		return [2]gamepad.Button{gamepad.ButtonDPadLeft, gamepad.ButtonDPadRight}, true
	}
	return [2]gamepad.Button{}, false
}

// IsStickY reports whether a is the vertical axis of a stick.
func IsStickY(a gamepad.Axis) bool {
	return a == gamepad.AxisLeftStickY || a == gamepad.AxisRightStickY
}

// StickPair returns the X and Y axes of the stick a belongs to.
func StickPair(a gamepad.Axis) (x, y gamepad.Axis, ok bool) {
	switch a {
	case gamepad.AxisLeftStickX, gamepad.AxisLeftStickY:
		return gamepad.AxisLeftStickX, gamepad.AxisLeftStickY, true
	case gamepad.AxisRightStickX, gamepad.AxisRightStickY:
		return gamepad.AxisRightStickX, gamepad.AxisRightStickY, true
	}
	return 0, 0, false
}

// KeyCodes lists every key the virtual device advertises.
func KeyCodes() []evdev.EvCode {
	codes := make([]evdev.EvCode, 0, len(buttonKeys))
	for _, b := range gamepad.Buttons() {
		if code, ok := buttonKeys[b]; ok {
			codes = append(codes, code)
		}
	}
	return codes
}

// AbsoluteCodes lists every absolute axis the virtual device advertises, in
// a fixed order.
func AbsoluteCodes() []evdev.EvCode {
	return []evdev.EvCode{
		evdev.ABS_X, evdev.ABS_Y, evdev.ABS_Z,
		evdev.ABS_RX, evdev.ABS_RY, evdev.ABS_RZ,
		evdev.ABS_HAT0X, evdev.ABS_HAT0Y,
	}
}

// IsTriggerAxis reports whether code carries a 0..1 trigger rather than a
// centred value.
func IsTriggerAxis(code evdev.EvCode) bool {
	return code == evdev.ABS_Z || code == evdev.ABS_RZ
}
