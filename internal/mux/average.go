package mux

import (
	"math"

	"github.com/soar/padmux/internal/gamepad"
	"github.com/soar/padmux/internal/translate"
)

// handleAverage blends both controllers. Either player can counter the
// other's input on analog controls.
func handleAverage(ev gamepad.Event, primary gamepad.ControllerID, p, a *gamepad.State) []OutputEvent {
	switch ev.Kind {
	case gamepad.ButtonPressed, gamepad.ButtonReleased:
		other := a
		if ev.Controller != primary {
			other = p
		}
		if other.IsPressed(ev.Button) {
			return nil
		}
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
		if pair, ok := translate.DPadAxisPair(ev.Button); ok {
			pn, an := dpadNet(p, pair), dpadNet(a, pair)
			pActive, aActive := math.Abs(pn) > translate.Deadzone, math.Abs(an) > translate.Deadzone
			net := pn
			switch {
			case aActive && pActive:
				net = pn + an
			case aActive:
				net = an
			}
			return []OutputEvent{dpadEvent(net, pair, code)}
		}
		pv, av := p.ButtonValue(ev.Button), a.ButtonValue(ev.Button)
		v := pv
		switch {
		case av > translate.Deadzone && pv > translate.Deadzone:
			v = (pv + av) / 2
		case av > translate.Deadzone:
			v = av
		}
		return []OutputEvent{triggerEvent(v, code)}

	case gamepad.AxisChanged:
		x, y, ok := translate.StickPair(ev.Axis)
		if !ok {
			return nil
		}
		px, py := p.AxisValue(x), p.AxisValue(y)
		ax, ay := a.AxisValue(x), a.AxisValue(y)
		vx, vy := px, py
		switch pActive, aActive := stickActive(p, x, y), stickActive(a, x, y); {
		case aActive && pActive:
			vx, vy = (px+ax)/2, (py+ay)/2
		case aActive:
			vx, vy = ax, ay
		}
		return stickEvents(x, y, vx, vy)
	}
	return nil
}
