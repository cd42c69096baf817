package ff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/soar/padmux/internal/ioctl"
)

const (
	evFF  = 0x15
	ffCnt = 0x80
)

var (
	eviocsff    = ioctl.IOW('E', 0x80, unsafe.Sizeof(Effect{}))
	eviocrmff   = ioctl.IOW('E', 0x81, unsafe.Sizeof(int32(0)))
	eviocgbitFF = ioctl.IOR('E', 0x20+evFF, ffCnt/8)
)

// rawEvent mirrors struct input_event.
type rawEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type evdevHandle struct {
	f *os.File
}

// OpenEvdev opens an event node for force feedback. It fails with
// ErrNotSupported when the device has no FF capability.
func OpenEvdev(path string) (Handle, error) {
	f, err := openPersistent(path, os.O_RDWR)
	if err != nil {
		return nil, err
	}
	if !hasFF(f) {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrNotSupported)
	}
	return &evdevHandle{f: f}, nil
}

// Supported reports whether the event node at path accepts FF effects.
func Supported(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	return hasFF(f)
}

func hasFF(f *os.File) bool {
	var bits [ffCnt / 8]byte
	if err := ioctl.Ptr(f.Fd(), eviocgbitFF, unsafe.Pointer(&bits[0])); err != nil {
		return false
	}
	rumble := bits[TypeRumble/8]&(1<<(TypeRumble%8)) != 0
	periodic := bits[TypePeriodic/8]&(1<<(TypePeriodic%8)) != 0
	return rumble || periodic
}

// openPersistent retries while udev may still be applying permissions to a
// freshly appeared node.
func openPersistent(path string, flag int) (f *os.File, err error) {
	for i := 0; i < 5; i++ {
		if f, err = os.OpenFile(path, flag, 0); err != nil {
			if errors.Is(err, os.ErrPermission) && i < 4 {
				time.Sleep(200 * time.Millisecond)
				continue
			}
			return nil, err
		}
		break
	}
	return f, nil
}

func (h *evdevHandle) Upload(e Effect) (EffectID, error) {
	if err := ioctl.Ptr(h.f.Fd(), eviocsff, unsafe.Pointer(&e)); err != nil {
		return -1, err
	}
	return e.ID, nil
}

func (h *evdevHandle) Erase(id EffectID) error {
	return ioctl.Int(h.f.Fd(), eviocrmff, uintptr(id))
}

func (h *evdevHandle) Play(id EffectID, count int32) error {
	return h.write(uint16(id), count)
}

func (h *evdevHandle) SetGain(v uint16) error {
	return h.write(CodeGain, int32(v))
}

func (h *evdevHandle) SetAutocenter(v uint16) error {
	return h.write(CodeAutocenter, int32(v))
}

func (h *evdevHandle) write(code uint16, value int32) error {
	ev := rawEvent{Type: evFF, Code: code, Value: value}
	return binary.Write(h.f, binary.NativeEndian, &ev)
}

func (h *evdevHandle) Close() error {
	return h.f.Close()
}
