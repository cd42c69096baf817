package mux

import (
	"fmt"

	evdev "github.com/holoplot/go-evdev"
)

// OutputKind tags an OutputEvent.
type OutputKind uint8

const (
	Key OutputKind = iota + 1
	Absolute
	Sync
)

// OutputEvent is one event written to the virtual device.
type OutputEvent struct {
	Kind  OutputKind
	Code  evdev.EvCode
	Value int32
}

func KeyEvent(code evdev.EvCode, pressed bool) OutputEvent {
	var v int32
	if pressed {
		v = 1
	}
	return OutputEvent{Kind: Key, Code: code, Value: v}
}

func AbsEvent(code evdev.EvCode, value int32) OutputEvent {
	return OutputEvent{Kind: Absolute, Code: code, Value: value}
}

func SyncEvent() OutputEvent {
	return OutputEvent{Kind: Sync, Code: evdev.SYN_REPORT}
}

// InputEvent converts e to the evdev wire form.
func (e OutputEvent) InputEvent() evdev.InputEvent {
	var t evdev.EvType
	switch e.Kind {
	case Key:
		t = evdev.EV_KEY
	case Absolute:
		t = evdev.EV_ABS
	case Sync:
		t = evdev.EV_SYN
	}
	return evdev.InputEvent{Type: t, Code: e.Code, Value: e.Value}
}

func (e OutputEvent) String() string {
	switch e.Kind {
	case Key:
		return fmt.Sprintf("key 0x%x=%d", uint16(e.Code), e.Value)
	case Absolute:
		return fmt.Sprintf("abs 0x%x=%d", uint16(e.Code), e.Value)
	case Sync:
		return "sync"
	}
	return fmt.Sprintf("event(%d %d %d)", e.Kind, e.Code, e.Value)
}

// Finish terminates a batch with exactly one Sync. An empty batch stays
// empty so nothing is written for it.
func Finish(batch []OutputEvent) []OutputEvent {
	if len(batch) == 0 {
		return nil
	}
	return append(batch, SyncEvent())
}
