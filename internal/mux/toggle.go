package mux

import (
	evdev "github.com/holoplot/go-evdev"

	"github.com/soar/padmux/internal/gamepad"
	"github.com/soar/padmux/internal/translate"
)

// ToggleButton is the assist controller button that hands control over.
const ToggleButton = gamepad.ButtonMode

func (e *Engine) handleToggle(ev gamepad.Event, primary, assist gamepad.ControllerID, states gamepad.StateReader) []OutputEvent {
	if e.active == "" {
		e.active = primary
	}

	if ev.Controller == assist && ev.Kind == gamepad.ButtonPressed && ev.Button == ToggleButton {
		if e.active == primary {
			e.active = assist
		} else {
			e.active = primary
		}
		s := states.State(e.active)
		return resync(&s, e.active == assist)
	}

	if ev.Controller != e.active {
		return nil
	}

	switch ev.Kind {
	case gamepad.ButtonPressed, gamepad.ButtonReleased:
		out, ok := keyEvent(ev.Button, ev.Kind == gamepad.ButtonPressed)
		if !ok {
			return nil
		}
		return []OutputEvent{out}
	case gamepad.ButtonChanged:
		code, ok := translate.ButtonToAxis(ev.Button)
		if !ok {
			return nil
		}
		s := states.State(e.active)
		return []OutputEvent{buttonAxisEvent(ev.Button, &s, code)}
	case gamepad.AxisChanged:
		out, ok := stickEvent(ev.Axis, ev.Value)
		if !ok {
			return nil
		}
		return []OutputEvent{out}
	}
	return nil
}

// resync renders every mapped control of s, held or not, so nothing the
// previously active controller left behind survives the hand-off. Each
// output code appears once. The toggle button is left out when the assist
// controller takes over.
func resync(s *gamepad.State, skipToggle bool) []OutputEvent {
	var out []OutputEvent
	seen := make(map[evdev.EvCode]bool)

	for _, b := range gamepad.Buttons() {
		if skipToggle && b == ToggleButton {
			continue
		}
		if ev, ok := keyEvent(b, s.IsPressed(b)); ok {
			out = append(out, ev)
		}
		if code, ok := translate.ButtonToAxis(b); ok && !seen[code] {
			seen[code] = true
			out = append(out, buttonAxisEvent(b, s, code))
		}
	}
	for _, a := range gamepad.Axes() {
		code, ok := translate.AxisToAxis(a)
		if !ok || seen[code] {
			continue
		}
		seen[code] = true
		if ev, ok := stickEvent(a, s.AxisValue(a)); ok {
			out = append(out, ev)
		}
	}
	return out
}
