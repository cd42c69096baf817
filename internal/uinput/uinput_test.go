package uinput

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	evdev "github.com/holoplot/go-evdev"

	"github.com/soar/padmux/internal/ff"
	"github.com/soar/padmux/internal/gamepad"
)

func TestStructLayouts(t *testing.T) {
	ptr := unsafe.Sizeof(uintptr(0))
	effect := unsafe.Sizeof(ff.Effect{})
	tests := []struct {
		name      string
		got, want uintptr
	}{
		{"uinput_setup", unsafe.Sizeof(uinputSetup{}), 92},
		{"uinput_abs_setup", unsafe.Sizeof(absSetup{}), 28},
		{"uinput_ff_erase", unsafe.Sizeof(ffErase{}), 12},
		{"uinput_ff_upload", unsafe.Sizeof(ffUpload{}), 8 + 2*effect},
		{"input_event", unsafe.Sizeof(rawEvent{}), 2*ptr + 8},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("sizeof(%s) = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
	if ptr == 8 && unsafe.Sizeof(ffUpload{}) != 104 {
		t.Errorf("uinput_ff_upload = %d on 64-bit, want 104", unsafe.Sizeof(ffUpload{}))
	}
}

func TestRequestNumbers(t *testing.T) {
	if ptr := unsafe.Sizeof(uintptr(0)); ptr != 8 {
		t.Skip("request numbers checked for 64-bit layouts")
	}
	tests := []struct {
		name      string
		got, want uintptr
	}{
		{"UI_DEV_CREATE", uiDevCreate, 0x5501},
		{"UI_DEV_DESTROY", uiDevDestroy, 0x5502},
		{"UI_DEV_SETUP", uiDevSetup, 0x405c5503},
		{"UI_ABS_SETUP", uiAbsSetup, 0x401c5504},
		{"UI_SET_EVBIT", uiSetEvBit, 0x40045564},
		{"UI_SET_KEYBIT", uiSetKeyBit, 0x40045565},
		{"UI_SET_ABSBIT", uiSetAbsBit, 0x40045567},
		{"UI_SET_FFBIT", uiSetFFBit, 0x4004556b},
		{"UI_BEGIN_FF_UPLOAD", uiBeginFFUpload, 0xc06855c8},
		{"UI_END_FF_UPLOAD", uiEndFFUpload, 0x406855c9},
		{"UI_BEGIN_FF_ERASE", uiBeginFFErase, 0xc00c55ca},
		{"UI_END_FF_ERASE", uiEndFFErase, 0x400c55cb},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = 0x%x, want 0x%x", tt.name, tt.got, tt.want)
		}
	}
}

func TestNewSetup(t *testing.T) {
	s := newSetup(Identity{Vendor: 0x045e, Product: 0x028e})
	if got := string(bytes.TrimRight(s.Name[:], "\x00")); got != DefaultName {
		t.Errorf("name = %q", got)
	}
	if s.ID.Version != gamepad.VirtualVersion || s.ID.Bustype != busUSB {
		t.Errorf("id = %+v", s.ID)
	}
	if s.FFEffectsMax != ff.MaxEffects {
		t.Errorf("ff_effects_max = %d", s.FFEffectsMax)
	}

	long := newSetup(Identity{Name: string(bytes.Repeat([]byte("x"), 200))})
	if long.Name[nameSize-1] != 0 {
		t.Error("name must stay NUL terminated")
	}
}

func TestHandleFFEvents(t *testing.T) {
	d := &Device{fd: -1}
	tests := []struct {
		ev   rawEvent
		want ff.Request
	}{
		{rawEvent{Type: uint16(evdev.EV_FF), Code: 3, Value: 1}, ff.Request{Kind: ff.RequestPlay, ID: 3, Value: 1}},
		{rawEvent{Type: uint16(evdev.EV_FF), Code: 3, Value: 0}, ff.Request{Kind: ff.RequestPlay, ID: 3}},
		{rawEvent{Type: uint16(evdev.EV_FF), Code: ff.CodeGain, Value: 0x4000}, ff.Request{Kind: ff.RequestGain, Value: 0x4000}},
		{rawEvent{Type: uint16(evdev.EV_FF), Code: ff.CodeAutocenter, Value: 7}, ff.Request{Kind: ff.RequestAutocenter, Value: 7}},
	}
	for _, tt := range tests {
		got, ok, err := d.handle(tt.ev)
		if err != nil || !ok || got != tt.want {
			t.Errorf("handle(%+v) = %v %v %v, want %v", tt.ev, got, ok, err, tt.want)
		}
	}
	if _, ok, _ := d.handle(rawEvent{Type: uint16(evdev.EV_SYN)}); ok {
		t.Error("sync events carry no request")
	}
}

func TestDecodeEvents(t *testing.T) {
	in := []rawEvent{
		{Type: evUinput, Code: uiFFUpload, Value: 5},
		{Type: uint16(evdev.EV_FF), Code: 1, Value: 1},
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.NativeEndian, in); err != nil {
		t.Fatal(err)
	}
	out, err := decodeEvents(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].Value != 5 || out[1].Code != 1 {
		t.Errorf("decoded %+v", out)
	}
}

func TestEventNode(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"capabilities", "js3", "event17"} {
		if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	got, err := eventNode(dir)
	if err != nil || got != "/dev/input/event17" {
		t.Errorf("eventNode = %q, %v", got, err)
	}
	if _, err := eventNode(filepath.Join(dir, "capabilities")); err == nil {
		t.Error("directory without an event child should fail")
	}
}
