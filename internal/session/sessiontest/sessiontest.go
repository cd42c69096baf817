// Package sessiontest provides in-memory devices for running sessions in
// tests without uinput or evdev.
package sessiontest

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/soar/padmux/internal/ff"
	"github.com/soar/padmux/internal/gamepad"
	"github.com/soar/padmux/internal/mux"
	"github.com/soar/padmux/internal/session"
	"github.com/soar/padmux/internal/uinput"
)

var (
	PadA = gamepad.Info{ID: "event10", Name: "Pad A", Path: "/dev/input/event10", Vendor: 0x045e, Product: 0x028e}
	PadB = gamepad.Info{ID: "event11", Name: "Pad B", Path: "/dev/input/event11", Vendor: 0x054c, Product: 0x09cc}
)

// Source serves queued events for PadA and PadB.
type Source struct {
	Events  chan gamepad.Event
	tracker *gamepad.Tracker
	done    chan struct{}
	once    sync.Once
	closed  atomic.Bool
}

func NewSource() *Source {
	return &Source{
		Events:  make(chan gamepad.Event, 16),
		tracker: gamepad.NewTracker(),
		done:    make(chan struct{}),
	}
}

func (s *Source) Controllers() []gamepad.Info { return []gamepad.Info{PadA, PadB} }

func (s *Source) State(id gamepad.ControllerID) gamepad.State { return s.tracker.State(id) }

func (s *Source) NextEvent(timeout time.Duration) (gamepad.Event, bool) {
	select {
	case ev := <-s.Events:
		s.tracker.Apply(ev)
		return ev, true
	case <-time.After(timeout):
	case <-s.done:
	}
	return gamepad.Event{}, false
}

func (s *Source) Close() error {
	s.closed.Store(true)
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *Source) Closed() bool { return s.closed.Load() }

// Virtual is a virtual gamepad that never receives force feedback.
type Virtual struct {
	wake   chan struct{}
	once   sync.Once
	closed atomic.Bool
}

func (v *Virtual) Path() string { return "/dev/input/event99" }

func (v *Virtual) FetchFF(timeout time.Duration) ([]ff.Request, error) {
	select {
	case <-v.wake:
	case <-time.After(timeout):
	}
	return nil, nil
}

func (v *Virtual) Close() error {
	v.closed.Store(true)
	return nil
}

func (v *Virtual) unblock() {
	v.once.Do(func() { close(v.wake) })
}

// Writer collects written batches.
type Writer struct {
	Batches chan []mux.OutputEvent
}

func (w *Writer) WriteEvents(batch []mux.OutputEvent) error {
	select {
	case w.Batches <- batch:
	default:
	}
	return nil
}

func (w *Writer) Close() error { return nil }

// Env bundles the fakes behind one set of session dependencies.
type Env struct {
	Writer  *Writer
	Sources []*Source
	mu      sync.Mutex
}

// NewEnv returns an environment whose controllers have no force feedback.
func NewEnv() *Env {
	return &Env{Writer: &Writer{Batches: make(chan []mux.OutputEvent, 64)}}
}

// Open hands out a fresh source, like reopening the evdev backend.
func (e *Env) Open() (gamepad.Source, error) {
	s := NewSource()
	e.mu.Lock()
	e.Sources = append(e.Sources, s)
	e.mu.Unlock()
	return s, nil
}

// Last returns the most recently opened source.
func (e *Env) Last() *Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Sources) == 0 {
		return nil
	}
	return e.Sources[len(e.Sources)-1]
}

func (e *Env) Deps() session.Deps {
	var virtual *Virtual
	return session.Deps{
		CreateVirtual: func(uinput.Identity) (session.VirtualDevice, error) {
			virtual = &Virtual{wake: make(chan struct{})}
			return virtual, nil
		},
		OpenWriter: func(string) (session.EventWriter, error) { return e.Writer, nil },
		OpenFF:     func(string) (ff.Handle, error) { return nil, ff.ErrNotSupported },
		SupportsFF: func(string) bool { return false },
		Unblock: func(string) error {
			virtual.unblock()
			return nil
		},
		FS: afero.NewMemMapFs(),
	}
}
