// Package uinput creates the virtual gamepad and services the force-feedback
// requests applications issue against it.
package uinput

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unsafe"

	evdev "github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"

	"github.com/soar/padmux/internal/ff"
	"github.com/soar/padmux/internal/gamepad"
	"github.com/soar/padmux/internal/ioctl"
	"github.com/soar/padmux/internal/translate"
)

const (
	devicePath = "/dev/uinput"
	sysInput   = "/sys/devices/virtual/input"

	// DefaultName is the virtual device name when no identity is spoofed.
	DefaultName = "Padmux Virtual Gamepad"

	busUSB   = 0x03
	nameSize = 80

	evUinput   = 0x0101
	uiFFUpload = 1
	uiFFErase  = 2

	nodeTimeout = 2 * time.Second
	nodeRetry   = 50 * time.Millisecond
)

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// uinputSetup mirrors struct uinput_setup.
type uinputSetup struct {
	ID           inputID
	Name         [nameSize]byte
	FFEffectsMax uint32
}

type absInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// absSetup mirrors struct uinput_abs_setup.
type absSetup struct {
	Code uint16
	_    [2]byte
	Info absInfo
}

// ffUpload mirrors struct uinput_ff_upload.
type ffUpload struct {
	RequestID uint32
	Retval    int32
	Effect    ff.Effect
	Old       ff.Effect
}

// ffErase mirrors struct uinput_ff_erase.
type ffErase struct {
	RequestID uint32
	Retval    int32
	EffectID  uint32
}

type rawEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

var (
	uiDevCreate  = ioctl.IO('U', 1)
	uiDevDestroy = ioctl.IO('U', 2)
	uiDevSetup   = ioctl.IOW('U', 3, unsafe.Sizeof(uinputSetup{}))
	uiAbsSetup   = ioctl.IOW('U', 4, unsafe.Sizeof(absSetup{}))
	uiSetEvBit   = ioctl.IOW('U', 100, unsafe.Sizeof(int32(0)))
	uiSetKeyBit  = ioctl.IOW('U', 101, unsafe.Sizeof(int32(0)))
	uiSetAbsBit  = ioctl.IOW('U', 103, unsafe.Sizeof(int32(0)))
	uiSetFFBit   = ioctl.IOW('U', 107, unsafe.Sizeof(int32(0)))

	uiBeginFFUpload = ioctl.IOWR('U', 200, unsafe.Sizeof(ffUpload{}))
	uiEndFFUpload   = ioctl.IOW('U', 201, unsafe.Sizeof(ffUpload{}))
	uiBeginFFErase  = ioctl.IOWR('U', 202, unsafe.Sizeof(ffErase{}))
	uiEndFFErase    = ioctl.IOW('U', 203, unsafe.Sizeof(ffErase{}))
)

const uiGetSysname = 44

var ffCodes = []uint16{
	ff.TypeRumble, ff.TypePeriodic, 0x58, 0x59, 0x5a, // square, triangle, sine
	ff.CodeGain, ff.CodeAutocenter,
}

// Identity is the name and USB ids the virtual device presents. Zero ids
// leave the kernel defaults.
type Identity struct {
	Name    string
	Vendor  uint16
	Product uint16
}

// Device is a created uinput gamepad.
type Device struct {
	fd      int
	sysname string
	path    string
}

// Create builds the virtual gamepad: every key and axis the arbitration
// engine emits, plus force feedback. It returns once the event node exists.
func Create(id Identity) (*Device, error) {
	fd, err := unix.Open(devicePath, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", devicePath, err)
	}
	d := &Device{fd: fd}
	if err := d.setup(id); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := ioctl.Int(uintptr(fd), uiDevCreate, 0); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("create virtual device: %w", err)
	}

	d.sysname, err = ioctl.String(uintptr(fd), 'U', uiGetSysname, 64)
	if err == nil {
		d.path, err = waitForNode(filepath.Join(sysInput, d.sysname))
	}
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("find virtual event node: %w", err)
	}
	return d, nil
}

func (d *Device) setup(id Identity) error {
	fd := uintptr(d.fd)
	for _, ev := range []evdev.EvType{evdev.EV_SYN, evdev.EV_KEY, evdev.EV_ABS, evdev.EV_FF} {
		if err := ioctl.Int(fd, uiSetEvBit, uintptr(ev)); err != nil {
			return fmt.Errorf("enable event type %d: %w", ev, err)
		}
	}
	for _, code := range translate.KeyCodes() {
		if err := ioctl.Int(fd, uiSetKeyBit, uintptr(code)); err != nil {
			return fmt.Errorf("enable key %d: %w", code, err)
		}
	}
	for _, code := range ffCodes {
		if err := ioctl.Int(fd, uiSetFFBit, uintptr(code)); err != nil {
			return fmt.Errorf("enable ff %d: %w", code, err)
		}
	}
	for _, code := range translate.AbsoluteCodes() {
		if err := ioctl.Int(fd, uiSetAbsBit, uintptr(code)); err != nil {
			return fmt.Errorf("enable axis %d: %w", code, err)
		}
		abs := absSetup{Code: uint16(code), Info: absInfo{
			Value:   translate.AbsMid,
			Minimum: translate.AbsMin,
			Maximum: translate.AbsMax,
		}}
		if translate.IsTriggerAxis(code) {
			abs.Info.Value = translate.AbsMin
		}
		if err := ioctl.Ptr(fd, uiAbsSetup, unsafe.Pointer(&abs)); err != nil {
			return fmt.Errorf("set up axis %d: %w", code, err)
		}
	}

	s := newSetup(id)
	if err := ioctl.Ptr(fd, uiDevSetup, unsafe.Pointer(&s)); err != nil {
		return fmt.Errorf("set up virtual device: %w", err)
	}
	return nil
}

func newSetup(id Identity) uinputSetup {
	name := id.Name
	if name == "" {
		name = DefaultName
	}
	s := uinputSetup{
		ID: inputID{
			Bustype: busUSB,
			Vendor:  id.Vendor,
			Product: id.Product,
			Version: gamepad.VirtualVersion,
		},
		FFEffectsMax: ff.MaxEffects,
	}
	copy(s.Name[:nameSize-1], name)
	return s
}

// waitForNode finds the eventN child of a uinput sysfs directory and waits
// until its device node can be opened.
func waitForNode(sysdir string) (string, error) {
	deadline := time.Now().Add(nodeTimeout)
	for {
		path, err := eventNode(sysdir)
		if err == nil {
			var f *os.File
			if f, err = os.Open(path); err == nil {
				f.Close()
				return path, nil
			}
		}
		if time.Now().After(deadline) {
			return "", err
		}
		time.Sleep(nodeRetry)
	}
}

func eventNode(sysdir string) (string, error) {
	entries, err := os.ReadDir(sysdir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "event") {
			return filepath.Join("/dev/input", e.Name()), nil
		}
	}
	return "", fmt.Errorf("no event node under %s", sysdir)
}

// Path returns the /dev/input/eventN node of the device.
func (d *Device) Path() string { return d.path }

// Sysname returns the kernel name, e.g. input42.
func (d *Device) Sysname() string { return d.sysname }

// FetchFF waits up to timeout for force-feedback traffic and returns it as
// requests. Uploads and erasures are acknowledged to the kernel before
// FetchFF returns. Nothing pending is not an error.
func (d *Device) FetchFF(timeout time.Duration) ([]ff.Request, error) {
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, fmt.Errorf("poll uinput: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	var reqs []ff.Request
	buf := make([]byte, 64*int(unsafe.Sizeof(rawEvent{})))
	for {
		n, err := unix.Read(d.fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				return reqs, nil
			}
			return reqs, fmt.Errorf("read uinput: %w", err)
		}
		if n <= 0 {
			return reqs, nil
		}
		events, err := decodeEvents(buf[:n])
		if err != nil {
			return reqs, err
		}
		for _, ev := range events {
			req, ok, err := d.handle(ev)
			if err != nil {
				return reqs, err
			}
			if ok {
				reqs = append(reqs, req)
			}
		}
	}
}

func decodeEvents(b []byte) ([]rawEvent, error) {
	events := make([]rawEvent, len(b)/int(unsafe.Sizeof(rawEvent{})))
	if err := binary.Read(bytes.NewReader(b), binary.NativeEndian, events); err != nil {
		return nil, fmt.Errorf("decode uinput events: %w", err)
	}
	return events, nil
}

func (d *Device) handle(ev rawEvent) (ff.Request, bool, error) {
	switch ev.Type {
	case evUinput:
		switch ev.Code {
		case uiFFUpload:
			return d.acceptUpload(uint32(ev.Value))
		case uiFFErase:
			return d.acceptErase(uint32(ev.Value))
		}
	case uint16(evdev.EV_FF):
		switch ev.Code {
		case ff.CodeGain:
			return ff.Request{Kind: ff.RequestGain, Value: ev.Value}, true, nil
		case ff.CodeAutocenter:
			return ff.Request{Kind: ff.RequestAutocenter, Value: ev.Value}, true, nil
		}
		return ff.Request{Kind: ff.RequestPlay, ID: ff.EffectID(ev.Code), Value: ev.Value}, true, nil
	}
	return ff.Request{}, false, nil
}

func (d *Device) acceptUpload(requestID uint32) (ff.Request, bool, error) {
	up := ffUpload{RequestID: requestID}
	if err := ioctl.Ptr(uintptr(d.fd), uiBeginFFUpload, unsafe.Pointer(&up)); err != nil {
		return ff.Request{}, false, fmt.Errorf("begin ff upload: %w", err)
	}
	req := ff.Request{Kind: ff.RequestUpload, ID: up.Effect.ID, Effect: up.Effect}
	up.Retval = 0
	if err := ioctl.Ptr(uintptr(d.fd), uiEndFFUpload, unsafe.Pointer(&up)); err != nil {
		return ff.Request{}, false, fmt.Errorf("end ff upload: %w", err)
	}
	return req, true, nil
}

func (d *Device) acceptErase(requestID uint32) (ff.Request, bool, error) {
	er := ffErase{RequestID: requestID}
	if err := ioctl.Ptr(uintptr(d.fd), uiBeginFFErase, unsafe.Pointer(&er)); err != nil {
		return ff.Request{}, false, fmt.Errorf("begin ff erase: %w", err)
	}
	req := ff.Request{Kind: ff.RequestErase, ID: ff.EffectID(er.EffectID)}
	er.Retval = 0
	if err := ioctl.Ptr(uintptr(d.fd), uiEndFFErase, unsafe.Pointer(&er)); err != nil {
		return ff.Request{}, false, fmt.Errorf("end ff erase: %w", err)
	}
	return req, true, nil
}

// Close destroys the virtual device.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	ioctl.Int(uintptr(d.fd), uiDevDestroy, 0)
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}
