package uinput

import (
	"fmt"

	evdev "github.com/holoplot/go-evdev"

	"github.com/soar/padmux/internal/mux"
)

// Writer injects events through the virtual device's own event node. It is a
// handle separate from the uinput descriptor the FF loop reads.
type Writer struct {
	dev *evdev.InputDevice
}

// OpenWriter opens the event node at path for writing.
func OpenWriter(path string) (*Writer, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Writer{dev: dev}, nil
}

// WriteEvents writes one batch. It stops at the first failing event.
func (w *Writer) WriteEvents(batch []mux.OutputEvent) error {
	for _, out := range batch {
		ev := out.InputEvent()
		if err := w.dev.WriteOne(&ev); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
	}
	return nil
}

func (w *Writer) Close() error {
	return w.dev.Close()
}

// Unblock writes a no-op force-feedback event and a sync to the event node
// at path, waking a reader blocked on the device's uinput descriptor.
func Unblock(path string) error {
	dev, err := evdev.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer dev.Close()
	for _, ev := range []evdev.InputEvent{
		{Type: evdev.EV_FF, Code: 0, Value: 0},
		{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT, Value: 0},
	} {
		if err := dev.WriteOne(&ev); err != nil {
			return fmt.Errorf("unblock %s: %w", path, err)
		}
	}
	return nil
}
