// Package mux arbitrates between the primary and assist controllers and
// produces the event batches written to the virtual device.
package mux

import (
	"github.com/soar/padmux/internal/gamepad"
)

// Engine is one arbitration policy instance. It is cheap to build; callers
// rebuild it when the mode changes. Only Toggle carries state.
type Engine struct {
	mode   Mode
	active gamepad.ControllerID
}

func NewEngine(mode Mode) *Engine {
	return &Engine{mode: mode}
}

func (e *Engine) Mode() Mode { return e.mode }

// Active returns the controller Toggle currently forwards. It reports false
// for the other modes and before the first event.
func (e *Engine) Active() (gamepad.ControllerID, bool) {
	if e.mode != Toggle || e.active == "" {
		return "", false
	}
	return e.active, true
}

// HandleEvent arbitrates one event. It returns nil when the event produces no
// output. The returned batch is not yet terminated by a Sync; see Finish.
func (e *Engine) HandleEvent(ev gamepad.Event, primary, assist gamepad.ControllerID, states gamepad.StateReader) []OutputEvent {
	if ev.Controller != primary && ev.Controller != assist {
		return nil
	}
	p, a := states.State(primary), states.State(assist)
	switch e.mode {
	case Priority:
		return handlePriority(ev, primary, &p, &a)
	case Average:
		return handleAverage(ev, primary, &p, &a)
	case Toggle:
		return e.handleToggle(ev, primary, assist, states)
	}
	return nil
}
