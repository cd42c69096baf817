package gamepad

// SDLAxis maps a raw SDL joystick axis index to a logical control.
type SDLAxis struct {
	Index   int32
	Axis    Axis
	Trigger Button // non-zero for trigger axes
	Invert  bool
	// For triggers: raw range. Some devices use -32768..32767, others 0..32767.
	RawMin int16
	RawMax int16
}

// SDLButton maps a raw SDL joystick button index to a logical button.
type SDLButton struct {
	Index  int32
	Button Button
}

// SDLMapping holds the raw layout of one controller family as seen through
// the SDL joystick API.
type SDLMapping struct {
	Name    string
	Axes    []SDLAxis
	Buttons []SDLButton
	HasHat  bool
}

// SDL hat bits.
const (
	hatUp    uint8 = 0x01
	hatRight uint8 = 0x02
	hatDown  uint8 = 0x04
	hatLeft  uint8 = 0x08
)

const sdlDeadzone = 0.05

// JoystickReader reads the raw controls of one open joystick.
type JoystickReader interface {
	Axis(index int32) int16
	Button(index int32) bool
	NumButtons() int32
	// Hat returns the first hat's bits, zero when there is none.
	Hat() uint8
}

var sdlSticks = []SDLAxis{
	{Index: 0, Axis: AxisLeftStickX},
	{Index: 1, Axis: AxisLeftStickY, Invert: true},
	{Index: 2, Axis: AxisRightStickX},
	{Index: 3, Axis: AxisRightStickY, Invert: true},
}

var sdlTriggers = []SDLAxis{
	{Index: 4, Trigger: ButtonLeftTrigger2, RawMin: -32768, RawMax: 32767},
	{Index: 5, Trigger: ButtonRightTrigger2, RawMin: -32768, RawMax: 32767},
}

var xboxSDLMapping = &SDLMapping{
	Name: "xbox",
	Axes: append(append([]SDLAxis{}, sdlSticks...), sdlTriggers...),
	Buttons: []SDLButton{
		{0, ButtonSouth},
		{1, ButtonEast},
		{2, ButtonWest},
		{3, ButtonNorth},
		{4, ButtonLeftTrigger},
		{5, ButtonRightTrigger},
		{6, ButtonSelect},
		{7, ButtonStart},
		{8, ButtonLeftThumb},
		{9, ButtonRightThumb},
		{10, ButtonMode},
	},
	HasHat: true,
}

var playstationSDLMapping = &SDLMapping{
	Name: "playstation",
	Axes: append(append([]SDLAxis{}, sdlSticks...), sdlTriggers...),
	Buttons: []SDLButton{
		{0, ButtonSouth},  // Cross
		{1, ButtonEast},   // Circle
		{2, ButtonWest},   // Square
		{3, ButtonNorth},  // Triangle
		{4, ButtonSelect}, // Share / Create
		{5, ButtonMode},   // PS button
		{6, ButtonStart},  // Options
		{7, ButtonLeftThumb},
		{8, ButtonRightThumb},
		{9, ButtonLeftTrigger},   // L1
		{10, ButtonRightTrigger}, // R1
	},
	HasHat: true,
}

// the Switch Pro triggers are digital
var switchProSDLMapping = &SDLMapping{
	Name: "switch_pro",
	Axes: sdlSticks,
	Buttons: []SDLButton{
		{0, ButtonSouth},
		{1, ButtonEast},
		{2, ButtonWest},
		{3, ButtonNorth},
		{4, ButtonLeftTrigger},
		{5, ButtonRightTrigger},
		{6, ButtonSelect},
		{7, ButtonStart},
		{8, ButtonLeftThumb},
		{9, ButtonRightThumb},
		{10, ButtonMode},
		{11, ButtonLeftTrigger2},
		{12, ButtonRightTrigger2},
	},
	HasHat: true,
}

type deviceKey struct {
	VendorID  uint16
	ProductID uint16
}

var knownSDLDevices = map[deviceKey]*SDLMapping{
	// Microsoft Xbox controllers
	{0x045E, 0x028E}: xboxSDLMapping, // Xbox 360
	{0x045E, 0x02FF}: xboxSDLMapping, // Xbox One
	{0x045E, 0x0B12}: xboxSDLMapping, // Xbox Series X|S
	{0x045E, 0x0B13}: xboxSDLMapping, // Xbox Series X|S (wireless)
	// Sony PlayStation controllers
	{0x054C, 0x0CE6}: playstationSDLMapping, // DualSense
	{0x054C, 0x09CC}: playstationSDLMapping, // DualShock 4 v2
	{0x054C, 0x05C4}: playstationSDLMapping, // DualShock 4 v1
	// Nintendo Switch Pro Controller
	{0x057E, 0x2009}: switchProSDLMapping,
}

// SDLMappingFor returns the layout for a vendor/product pair, falling back
// to the Xbox layout most drivers emulate.
func SDLMappingFor(vendorID, productID uint16) *SDLMapping {
	if m, ok := knownSDLDevices[deviceKey{vendorID, productID}]; ok {
		return m
	}
	return xboxSDLMapping
}

// Read samples every mapped control of r. prev supplies the trigger press
// hysteresis.
func (m *SDLMapping) Read(r JoystickReader, prev *State) State {
	s := State{Connected: true}
	for _, am := range m.Axes {
		raw := r.Axis(am.Index)
		if am.Trigger != ButtonUnknown {
			v := ApplyDeadzone(NormalizeTrigger(int32(raw), int32(am.RawMin), int32(am.RawMax)), sdlDeadzone)
			threshold := triggerPressThreshold
			if prev.IsPressed(am.Trigger) {
				threshold = triggerReleaseThreshold
			}
			s.SetButton(am.Trigger, v >= threshold, v)
			continue
		}
		v := NormalizeAxis(int32(raw), -32768, 32767, 0)
		if am.Invert {
			v = -v
		}
		s.SetAxis(am.Axis, ApplyDeadzone(v, sdlDeadzone))
	}

	n := r.NumButtons()
	for _, bm := range m.Buttons {
		if bm.Index >= n {
			continue
		}
		pressed := r.Button(bm.Index)
		s.SetButton(bm.Button, pressed, boolValue(pressed))
	}

	if m.HasHat {
		hat := r.Hat()
		for _, h := range []struct {
			bit uint8
			b   Button
		}{
			{hatUp, ButtonDPadUp},
			{hatRight, ButtonDPadRight},
			{hatDown, ButtonDPadDown},
			{hatLeft, ButtonDPadLeft},
		} {
			pressed := hat&h.bit != 0
			s.SetButton(h.b, pressed, boolValue(pressed))
		}
	}
	return s
}
