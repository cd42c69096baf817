package gamepad

import "testing"

type fakeJoystick struct {
	axes    map[int32]int16
	buttons map[int32]bool
	hat     uint8
}

func (j fakeJoystick) Axis(i int32) int16  { return j.axes[i] }
func (j fakeJoystick) Button(i int32) bool { return j.buttons[i] }
func (j fakeJoystick) NumButtons() int32   { return 11 }
func (j fakeJoystick) Hat() uint8          { return j.hat }

func restingJoystick() fakeJoystick {
	return fakeJoystick{
		axes:    map[int32]int16{4: -32768, 5: -32768},
		buttons: map[int32]bool{},
	}
}

func TestSDLMappingFor(t *testing.T) {
	if m := SDLMappingFor(0x054C, 0x0CE6); m.Name != "playstation" {
		t.Errorf("DualSense mapped to %s", m.Name)
	}
	if m := SDLMappingFor(0x1234, 0x5678); m.Name != "xbox" {
		t.Errorf("unknown pad mapped to %s", m.Name)
	}
}

func TestSDLReadButtonsAndHat(t *testing.T) {
	js := restingJoystick()
	js.buttons[0] = true
	js.buttons[5] = true // PS button
	js.hat = hatUp | hatLeft

	s := SDLMappingFor(0x054C, 0x0CE6).Read(js, &State{})
	for _, b := range []Button{ButtonSouth, ButtonMode, ButtonDPadUp, ButtonDPadLeft} {
		if !s.IsPressed(b) {
			t.Errorf("%s should be pressed", b)
		}
	}
	for _, b := range []Button{ButtonEast, ButtonDPadDown, ButtonLeftTrigger2} {
		if s.IsPressed(b) {
			t.Errorf("%s should be released", b)
		}
	}
}

func TestSDLReadSticksAndTriggers(t *testing.T) {
	js := restingJoystick()
	js.axes[0] = 32767
	js.axes[1] = -32768
	js.axes[2] = 1000 // inside the deadzone
	js.axes[4] = 32767

	m := SDLMappingFor(0x045E, 0x028E)
	s := m.Read(js, &State{})
	if v := s.AxisValue(AxisLeftStickX); v != 1 {
		t.Errorf("left x = %v", v)
	}
	if v := s.AxisValue(AxisLeftStickY); v <= 0.99 {
		t.Errorf("left y should read as fully up, got %v", v)
	}
	if v := s.AxisValue(AxisRightStickX); v != 0 {
		t.Errorf("right x = %v, want deadzone", v)
	}
	if !s.IsPressed(ButtonLeftTrigger2) || s.ButtonValue(ButtonLeftTrigger2) != 1 {
		t.Error("full left trigger should press lt2")
	}

	// released only below the lower threshold
	js.axes[4] = 13106 // 0.7 of the range
	held := m.Read(js, &s)
	if !held.IsPressed(ButtonLeftTrigger2) {
		t.Error("trigger between thresholds should stay pressed")
	}
	if fresh := m.Read(js, &State{}); fresh.IsPressed(ButtonLeftTrigger2) {
		t.Error("trigger between thresholds should not press")
	}
}
