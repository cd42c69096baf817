package gamepad

import (
	"math"

	evdev "github.com/holoplot/go-evdev"
)

// Analog triggers also report digital presses, with hysteresis so a trigger
// resting near the threshold does not chatter.
const (
	triggerPressThreshold   = 0.75
	triggerReleaseThreshold = 0.65
)

var keyButtons = map[evdev.EvCode]Button{
	evdev.BTN_SOUTH:      ButtonSouth,
	evdev.BTN_EAST:       ButtonEast,
	evdev.BTN_NORTH:      ButtonNorth,
	evdev.BTN_WEST:       ButtonWest,
	evdev.BTN_TL:         ButtonLeftTrigger,
	evdev.BTN_TR:         ButtonRightTrigger,
	evdev.BTN_TL2:        ButtonLeftTrigger2,
	evdev.BTN_TR2:        ButtonRightTrigger2,
	evdev.BTN_SELECT:     ButtonSelect,
	evdev.BTN_START:      ButtonStart,
	evdev.BTN_MODE:       ButtonMode,
	evdev.BTN_THUMBL:     ButtonLeftThumb,
	evdev.BTN_THUMBR:     ButtonRightThumb,
	evdev.BTN_DPAD_UP:    ButtonDPadUp,
	evdev.BTN_DPAD_DOWN:  ButtonDPadDown,
	evdev.BTN_DPAD_LEFT:  ButtonDPadLeft,
	evdev.BTN_DPAD_RIGHT: ButtonDPadRight,
}

// AxisMapping defines how a raw absolute axis maps to a logical control.
type AxisMapping struct {
	Axis    Axis
	Trigger Button // non-zero for pressure axes reported as buttons
	HatNeg  Button // non-zero for hat axes
	HatPos  Button
	Invert  bool
	RawMin  int32
	RawMax  int32
	Flat    int32
}

// DeviceMapping holds the abs axis layout of one physical device.
type DeviceMapping struct {
	Axes map[evdev.EvCode]AxisMapping
}

// NewDeviceMapping builds the layout from the device's absolute axis
// calibration. Pads without ABS_RX/ABS_RY report their right stick on
// ABS_Z/ABS_RZ; everything else uses Z/RZ (or BRAKE/GAS) as triggers.
func NewDeviceMapping(abs map[evdev.EvCode]evdev.AbsInfo) *DeviceMapping {
	m := &DeviceMapping{Axes: make(map[evdev.EvCode]AxisMapping)}
	set := func(code evdev.EvCode, am AxisMapping) {
		info, ok := abs[code]
		if !ok {
			return
		}
		am.RawMin, am.RawMax, am.Flat = info.Minimum, info.Maximum, info.Flat
		m.Axes[code] = am
	}

	set(evdev.ABS_X, AxisMapping{Axis: AxisLeftStickX})
	set(evdev.ABS_Y, AxisMapping{Axis: AxisLeftStickY, Invert: true})

	_, hasRX := abs[evdev.ABS_RX]
	if hasRX {
		set(evdev.ABS_RX, AxisMapping{Axis: AxisRightStickX})
		set(evdev.ABS_RY, AxisMapping{Axis: AxisRightStickY, Invert: true})
		set(evdev.ABS_Z, AxisMapping{Trigger: ButtonLeftTrigger2})
		set(evdev.ABS_RZ, AxisMapping{Trigger: ButtonRightTrigger2})
	} else {
		set(evdev.ABS_Z, AxisMapping{Axis: AxisRightStickX})
		set(evdev.ABS_RZ, AxisMapping{Axis: AxisRightStickY, Invert: true})
	}
	set(evdev.ABS_BRAKE, AxisMapping{Trigger: ButtonLeftTrigger2})
	set(evdev.ABS_GAS, AxisMapping{Trigger: ButtonRightTrigger2})
	set(evdev.ABS_HAT0X, AxisMapping{HatNeg: ButtonDPadLeft, HatPos: ButtonDPadRight})
	set(evdev.ABS_HAT0Y, AxisMapping{HatNeg: ButtonDPadUp, HatPos: ButtonDPadDown})
	return m
}

// Apply folds one raw evdev event into s. It reports whether the event was
// relevant to the mapping.
func (m *DeviceMapping) Apply(s *State, ev *evdev.InputEvent) bool {
	switch ev.Type {
	case evdev.EV_KEY:
		b, ok := keyButtons[ev.Code]
		if !ok {
			return false
		}
		// value 2 is autorepeat
		pressed := ev.Value != 0
		value := 0.0
		if pressed {
			value = 1
		}
		if _, analog := m.triggerAxis(b); analog {
			// the analog axis owns the value, the key only the pressed flag
			value = s.ButtonValue(b)
		}
		s.SetButton(b, pressed, value)
		return true

	case evdev.EV_ABS:
		am, ok := m.Axes[ev.Code]
		if !ok {
			return false
		}
		switch {
		case am.HatNeg != ButtonUnknown:
			neg, pos := ev.Value < 0, ev.Value > 0
			s.SetButton(am.HatNeg, neg, boolValue(neg))
			s.SetButton(am.HatPos, pos, boolValue(pos))
		case am.Trigger != ButtonUnknown:
			v := NormalizeTrigger(ev.Value, am.RawMin, am.RawMax)
			pressed := s.IsPressed(am.Trigger)
			if pressed && v < triggerReleaseThreshold {
				pressed = false
			} else if !pressed && v >= triggerPressThreshold {
				pressed = true
			}
			s.SetButton(am.Trigger, pressed, v)
		default:
			v := NormalizeAxis(ev.Value, am.RawMin, am.RawMax, am.Flat)
			if am.Invert {
				v = -v
			}
			s.SetAxis(am.Axis, v)
		}
		return true
	}
	return false
}

func (m *DeviceMapping) triggerAxis(b Button) (evdev.EvCode, bool) {
	for code, am := range m.Axes {
		if am.Trigger == b {
			return code, true
		}
	}
	return 0, false
}

// ButtonForKey returns the logical button of an evdev key code.
func ButtonForKey(code evdev.EvCode) (Button, bool) {
	b, ok := keyButtons[code]
	return b, ok
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// NormalizeAxis converts a raw axis value to -1.0..1.0 around the centre of
// the calibrated range. Values within flat of the centre read as 0.
func NormalizeAxis(raw, rawMin, rawMax, flat int32) float64 {
	if rawMax <= rawMin {
		return 0
	}
	center := (float64(rawMin) + float64(rawMax)) / 2
	half := (float64(rawMax) - float64(rawMin)) / 2
	d := float64(raw) - center
	if math.Abs(d) <= float64(flat) {
		return 0
	}
	return clamp(d/half, -1, 1)
}

// NormalizeTrigger converts a raw trigger value to 0.0..1.0.
func NormalizeTrigger(raw, rawMin, rawMax int32) float64 {
	if rawMax <= rawMin {
		return 0
	}
	return clamp((float64(raw)-float64(rawMin))/(float64(rawMax)-float64(rawMin)), 0, 1)
}

// ApplyDeadzone returns 0 if the value is within the deadzone threshold.
func ApplyDeadzone(v float64, threshold float64) float64 {
	if math.Abs(v) < threshold {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
