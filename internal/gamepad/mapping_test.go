package gamepad

import (
	"math"
	"testing"

	evdev "github.com/holoplot/go-evdev"
)

func xboxAbs() map[evdev.EvCode]evdev.AbsInfo {
	stick := evdev.AbsInfo{Minimum: -32768, Maximum: 32767, Flat: 128}
	trigger := evdev.AbsInfo{Minimum: 0, Maximum: 1023}
	hat := evdev.AbsInfo{Minimum: -1, Maximum: 1}
	return map[evdev.EvCode]evdev.AbsInfo{
		evdev.ABS_X:     stick,
		evdev.ABS_Y:     stick,
		evdev.ABS_RX:    stick,
		evdev.ABS_RY:    stick,
		evdev.ABS_Z:     trigger,
		evdev.ABS_RZ:    trigger,
		evdev.ABS_HAT0X: hat,
		evdev.ABS_HAT0Y: hat,
	}
}

func TestNormalizeAxis(t *testing.T) {
	tests := []struct {
		raw, min, max, flat int32
		want                float64
	}{
		{0, -32768, 32767, 0, 0.5 / 32767.5},
		{32767, -32768, 32767, 0, 1},
		{-32768, -32768, 32767, 0, -1},
		{100, -32768, 32767, 128, 0},
		{255, 0, 255, 0, 1},
		{0, 0, 255, 0, -1},
		{5, 5, 5, 0, 0},
	}
	for _, tt := range tests {
		got := NormalizeAxis(tt.raw, tt.min, tt.max, tt.flat)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeAxis(%d, %d, %d, %d) = %v, want %v", tt.raw, tt.min, tt.max, tt.flat, got, tt.want)
		}
	}
}

func TestNormalizeTrigger(t *testing.T) {
	if got := NormalizeTrigger(1023, 0, 1023); got != 1 {
		t.Errorf("full trigger = %v", got)
	}
	if got := NormalizeTrigger(-5, 0, 1023); got != 0 {
		t.Errorf("below range = %v", got)
	}
	if got := NormalizeTrigger(0, -32768, 32767); math.Abs(got-0.5) > 1e-4 {
		t.Errorf("signed trigger centre = %v", got)
	}
}

func TestDeviceMappingHat(t *testing.T) {
	m := NewDeviceMapping(xboxAbs())
	var s State

	m.Apply(&s, &evdev.InputEvent{Type: evdev.EV_ABS, Code: evdev.ABS_HAT0Y, Value: -1})
	if !s.IsPressed(ButtonDPadUp) || s.ButtonValue(ButtonDPadUp) != 1 {
		t.Error("hat up should press dpad up")
	}

	m.Apply(&s, &evdev.InputEvent{Type: evdev.EV_ABS, Code: evdev.ABS_HAT0Y, Value: 1})
	if s.IsPressed(ButtonDPadUp) || !s.IsPressed(ButtonDPadDown) {
		t.Error("hat down should release up and press down")
	}

	m.Apply(&s, &evdev.InputEvent{Type: evdev.EV_ABS, Code: evdev.ABS_HAT0Y, Value: 0})
	if s.IsPressed(ButtonDPadDown) || s.ButtonValue(ButtonDPadDown) != 0 {
		t.Error("hat centre should release down")
	}
}

func TestDeviceMappingTriggerHysteresis(t *testing.T) {
	m := NewDeviceMapping(xboxAbs())
	var s State
	apply := func(v int32) {
		m.Apply(&s, &evdev.InputEvent{Type: evdev.EV_ABS, Code: evdev.ABS_Z, Value: v})
	}

	apply(700) // ~0.68
	if s.IsPressed(ButtonLeftTrigger2) {
		t.Error("below press threshold")
	}
	apply(800) // ~0.78
	if !s.IsPressed(ButtonLeftTrigger2) {
		t.Error("above press threshold")
	}
	apply(700)
	if !s.IsPressed(ButtonLeftTrigger2) {
		t.Error("inside hysteresis band should stay pressed")
	}
	apply(600)
	if s.IsPressed(ButtonLeftTrigger2) {
		t.Error("below release threshold")
	}
	if got := s.ButtonValue(ButtonLeftTrigger2); math.Abs(got-600.0/1023) > 1e-9 {
		t.Errorf("trigger value = %v", got)
	}
}

func TestDeviceMappingStickInvert(t *testing.T) {
	m := NewDeviceMapping(xboxAbs())
	var s State
	m.Apply(&s, &evdev.InputEvent{Type: evdev.EV_ABS, Code: evdev.ABS_Y, Value: -32768})
	if got := s.AxisValue(AxisLeftStickY); got != 1 {
		t.Errorf("stick pushed up should read +1, got %v", got)
	}
}

func TestDeviceMappingRightStickOnZ(t *testing.T) {
	stick := evdev.AbsInfo{Minimum: 0, Maximum: 255}
	m := NewDeviceMapping(map[evdev.EvCode]evdev.AbsInfo{
		evdev.ABS_X:  stick,
		evdev.ABS_Y:  stick,
		evdev.ABS_Z:  stick,
		evdev.ABS_RZ: stick,
	})
	var s State
	m.Apply(&s, &evdev.InputEvent{Type: evdev.EV_ABS, Code: evdev.ABS_Z, Value: 255})
	if got := s.AxisValue(AxisRightStickX); got != 1 {
		t.Errorf("ABS_Z should drive right stick X, got %v", got)
	}
}

func TestDeviceMappingKeys(t *testing.T) {
	m := NewDeviceMapping(xboxAbs())
	var s State
	if !m.Apply(&s, &evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.BTN_SOUTH, Value: 1}) {
		t.Fatal("BTN_SOUTH should be mapped")
	}
	if !s.IsPressed(ButtonSouth) || s.ButtonValue(ButtonSouth) != 1 {
		t.Error("south should be pressed with value 1")
	}
	if m.Apply(&s, &evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.KEY_A, Value: 1}) {
		t.Error("keyboard keys are not gamepad buttons")
	}
}
