package gamepad

import (
	"math"
	"sync"
)

// ButtonData is the live state of one button. Digital buttons report Value
// 0 or 1; pressure buttons report the full range.
type ButtonData struct {
	Pressed bool
	Value   float64
}

// State is a snapshot of one controller's buttons and axes.
type State struct {
	Connected bool
	buttons   [buttonCount]ButtonData
	axes      [axisCount]float64
}

// IsPressed reports whether b is currently held.
func (s *State) IsPressed(b Button) bool {
	if b >= buttonCount {
		return false
	}
	return s.buttons[b].Pressed
}

// ButtonValue returns the analog value of b, 0 when unknown.
func (s *State) ButtonValue(b Button) float64 {
	if b >= buttonCount {
		return 0
	}
	return s.buttons[b].Value
}

// AxisValue returns the value of a, 0 when unknown.
func (s *State) AxisValue(a Axis) float64 {
	if a >= axisCount {
		return 0
	}
	return s.axes[a]
}

// SetButton overwrites the state of b.
func (s *State) SetButton(b Button, pressed bool, value float64) {
	if b == ButtonUnknown || b >= buttonCount {
		return
	}
	s.buttons[b] = ButtonData{Pressed: pressed, Value: value}
}

// SetAxis overwrites the value of a.
func (s *State) SetAxis(a Axis, value float64) {
	if a == AxisUnknown || a >= axisCount {
		return
	}
	s.axes[a] = value
}

// Apply folds one event into the snapshot.
func (s *State) Apply(ev Event) {
	switch ev.Kind {
	case ButtonPressed:
		if ev.Button < buttonCount {
			s.buttons[ev.Button].Pressed = true
		}
	case ButtonReleased:
		if ev.Button < buttonCount {
			s.buttons[ev.Button].Pressed = false
		}
	case ButtonChanged:
		if ev.Button < buttonCount {
			s.buttons[ev.Button].Value = ev.Value
		}
	case AxisChanged:
		if ev.Axis < axisCount {
			s.axes[ev.Axis] = ev.Value
		}
	case Connected:
		s.Connected = true
	case Disconnected:
		*s = State{}
	}
}

// StateReader gives read access to the live state of every controller.
type StateReader interface {
	State(id ControllerID) State
}

// Tracker keeps the live state of several controllers. Sources apply events
// to it before handing them out so readers always see the event's effect.
type Tracker struct {
	mu     sync.RWMutex
	states map[ControllerID]*State
}

func NewTracker() *Tracker {
	return &Tracker{states: make(map[ControllerID]*State)}
}

// State returns a copy of the state of id.
func (t *Tracker) State(id ControllerID) State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.states[id]; ok {
		return *s
	}
	return State{}
}

// Apply records ev against its controller.
func (t *Tracker) Apply(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[ev.Controller]
	if !ok {
		s = &State{}
		t.states[ev.Controller] = s
	}
	s.Apply(ev)
}

// Replace sets the whole state of id and returns the events that lead from
// the previous state to the new one.
func (t *Tracker) Replace(id ControllerID, next State) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[id]
	if !ok {
		s = &State{}
		t.states[id] = s
	}
	events := Diff(id, *s, next)
	*s = next
	return events
}

// Neutralize returns events releasing every held button and centring every
// displaced axis of id. The tracker is not modified.
func (t *Tracker) Neutralize(id ControllerID) []Event {
	cur := t.State(id)
	return Diff(id, cur, State{Connected: cur.Connected})
}

const analogThreshold = 0.001

func floatEqual(a, b float64) bool {
	return math.Abs(a-b) < analogThreshold
}

// Diff lists the events that turn old into new. Press and release events
// precede the matching value change.
func Diff(id ControllerID, old, new_ State) []Event {
	var events []Event
	for b := ButtonSouth; b < buttonCount; b++ {
		o, n := old.buttons[b], new_.buttons[b]
		if o.Pressed != n.Pressed {
			kind := ButtonReleased
			if n.Pressed {
				kind = ButtonPressed
			}
			events = append(events, Event{Controller: id, Kind: kind, Button: b, Value: n.Value})
		}
		if !floatEqual(o.Value, n.Value) || (o.Value != n.Value && n.Value == 0) {
			events = append(events, Event{Controller: id, Kind: ButtonChanged, Button: b, Value: n.Value})
		}
	}
	for a := AxisLeftStickX; a < axisCount; a++ {
		o, n := old.axes[a], new_.axes[a]
		if !floatEqual(o, n) || (o != n && n == 0) {
			events = append(events, Event{Controller: id, Kind: AxisChanged, Axis: a, Value: n})
		}
	}
	return events
}
