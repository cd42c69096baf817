package mux

import (
	"math"

	"github.com/soar/padmux/internal/gamepad"
	"github.com/soar/padmux/internal/translate"
)

// handlePriority lets the assist controller override the primary one. The
// primary controller's input shows through wherever assist is idle.
func handlePriority(ev gamepad.Event, primary gamepad.ControllerID, p, a *gamepad.State) []OutputEvent {
	fromPrimary := ev.Controller == primary

	switch ev.Kind {
	case gamepad.ButtonPressed, gamepad.ButtonReleased:
		pressed := ev.Kind == gamepad.ButtonPressed
		if fromPrimary && a.IsPressed(ev.Button) {
			return nil
		}
		if !fromPrimary && !pressed && p.IsPressed(ev.Button) {
			// primary's press was swallowed while assist held the button
			pressed = true
		}
		out, ok := keyEvent(ev.Button, pressed)
		if !ok {
			return nil
		}
		return []OutputEvent{out}

	case gamepad.ButtonChanged:
		code, ok := translate.ButtonToAxis(ev.Button)
		if !ok {
			return nil
		}
		if pair, ok := translate.DPadAxisPair(ev.Button); ok {
			net := dpadNet(p, pair)
			if an := dpadNet(a, pair); math.Abs(an) > translate.Deadzone {
				net = an
			}
			return []OutputEvent{dpadEvent(net, pair, code)}
		}
		v := math.Max(p.ButtonValue(ev.Button), a.ButtonValue(ev.Button))
		return []OutputEvent{triggerEvent(v, code)}

	case gamepad.AxisChanged:
		x, y, ok := translate.StickPair(ev.Axis)
		if !ok {
			return nil
		}
		owner := p
		if stickActive(a, x, y) {
			if fromPrimary {
				return nil
			}
			owner = a
		}
		return stickEvents(x, y, owner.AxisValue(x), owner.AxisValue(y))
	}
	return nil
}
