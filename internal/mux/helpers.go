package mux

import (
	"math"

	evdev "github.com/holoplot/go-evdev"

	"github.com/soar/padmux/internal/gamepad"
	"github.com/soar/padmux/internal/translate"
)

// dpadNet is the signed value of a D-pad axis: positive direction minus
// negative direction.
func dpadNet(s *gamepad.State, pair [2]gamepad.Button) float64 {
	return s.ButtonValue(pair[1]) - s.ButtonValue(pair[0])
}

func stickActive(s *gamepad.State, x, y gamepad.Axis) bool {
	return math.Hypot(s.AxisValue(x), s.AxisValue(y)) > translate.Deadzone
}

func keyEvent(b gamepad.Button, pressed bool) (OutputEvent, bool) {
	code, ok := translate.ButtonToKey(b)
	if !ok {
		return OutputEvent{}, false
	}
	return KeyEvent(code, pressed), true
}

// dpadEvent scales a D-pad net value. The sign picks the active direction;
// Up and Left run towards the low end of the axis.
func dpadEvent(net float64, pair [2]gamepad.Button, code evdev.EvCode) OutputEvent {
	active, magnitude := pair[0], math.Abs(net)
	if net > translate.Deadzone {
		active, magnitude = pair[1], net
	}
	invert := active == gamepad.ButtonDPadUp || active == gamepad.ButtonDPadLeft
	return AbsEvent(code, translate.ScaleStick(magnitude, invert))
}

func triggerEvent(v float64, code evdev.EvCode) OutputEvent {
	return AbsEvent(code, translate.ScaleTrigger(v))
}

func stickEvent(a gamepad.Axis, v float64) (OutputEvent, bool) {
	code, ok := translate.AxisToAxis(a)
	if !ok {
		return OutputEvent{}, false
	}
	return AbsEvent(code, translate.ScaleStick(v, translate.IsStickY(a))), true
}

// buttonAxisEvent renders a pressure button or D-pad direction from a single
// controller's state.
func buttonAxisEvent(b gamepad.Button, s *gamepad.State, code evdev.EvCode) OutputEvent {
	if pair, ok := translate.DPadAxisPair(b); ok {
		return dpadEvent(dpadNet(s, pair), pair, code)
	}
	return triggerEvent(s.ButtonValue(b), code)
}

// stickEvents emits both axes of a stick.
func stickEvents(x, y gamepad.Axis, vx, vy float64) []OutputEvent {
	var out []OutputEvent
	if ev, ok := stickEvent(x, vx); ok {
		out = append(out, ev)
	}
	if ev, ok := stickEvent(y, vy); ok {
		out = append(out, ev)
	}
	return out
}
