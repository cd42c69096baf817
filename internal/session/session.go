// Package session runs one merged controller: it owns the virtual gamepad,
// feeds it from the input source and mirrors its force feedback back onto
// the physical controllers.
package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/soar/padmux/internal/ff"
	"github.com/soar/padmux/internal/gamepad"
	"github.com/soar/padmux/internal/hide"
	"github.com/soar/padmux/internal/mux"
	"github.com/soar/padmux/internal/uinput"
)

var (
	ErrSameController    = errors.New("primary and assist must be different controllers")
	ErrUnknownController = errors.New("controller not found")
)

// Verbose enables per-event debug logging.
var Verbose bool

func debugf(format string, args ...any) {
	if Verbose {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// VirtualDevice is the created virtual gamepad seen from the FF loop.
type VirtualDevice interface {
	// Path is the virtual device's event node.
	Path() string
	FetchFF(timeout time.Duration) ([]ff.Request, error)
	Close() error
}

// EventWriter injects arbitrated batches into the virtual device.
type EventWriter interface {
	WriteEvents(batch []mux.OutputEvent) error
	Close() error
}

// Deps are the system facilities a session acquires.
type Deps struct {
	CreateVirtual func(id uinput.Identity) (VirtualDevice, error)
	OpenWriter    func(path string) (EventWriter, error)
	OpenFF        ff.Opener
	SupportsFF    func(path string) bool
	// Unblock wakes an FF loop waiting on the virtual device.
	Unblock func(path string) error
	FS      afero.Fs
}

// LinuxDeps wires uinput and evdev.
func LinuxDeps() Deps {
	return Deps{
		CreateVirtual: func(id uinput.Identity) (VirtualDevice, error) { return uinput.Create(id) },
		OpenWriter:    func(path string) (EventWriter, error) { return uinput.OpenWriter(path) },
		OpenFF:        ff.OpenEvdev,
		SupportsFF:    ff.Supported,
		Unblock:       uinput.Unblock,
		FS:            afero.NewOsFs(),
	}
}

// Config selects the controllers and the initial settings of a session.
// Primary and Assist are looked up with gamepad.FindController.
type Config struct {
	Primary string
	Assist  string
	Mode    mux.Mode
	Rumble  RumbleTarget
	Spoof   Spoof
	Hide    hide.Type
	Grab    bool
}

// Status is a snapshot of a session.
type Status struct {
	Mode    mux.Mode     `json:"mode"`
	Rumble  RumbleTarget `json:"rumble"`
	Primary gamepad.Info `json:"primary"`
	Assist  gamepad.Info `json:"assist"`
	Virtual string       `json:"virtual"`
	// Active is the controller Toggle forwards, empty in the other modes.
	Active gamepad.ControllerID `json:"active,omitempty"`
}

// Handle is a running session.
type Handle struct {
	deps     Deps
	src      gamepad.Source
	primary  gamepad.Info
	assist   gamepad.Info
	settings *Settings
	hider    *hide.Scoped
	virtual  VirtualDevice
	writer   EventWriter
	grabbed  bool
	rumble   []*ff.Device

	shutdown atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup

	activeMu sync.Mutex
	active   gamepad.ControllerID
}

// Start acquires everything a session needs and spawns its loops. It takes
// ownership of src, which is closed on failure and at Shutdown.
func Start(src gamepad.Source, cfg Config, deps Deps) (*Handle, error) {
	h := &Handle{
		deps:     deps,
		src:      src,
		settings: NewSettings(cfg.Mode, cfg.Rumble),
		hider:    hide.New(deps.FS, cfg.Hide),
	}
	if err := h.acquire(cfg); err != nil {
		h.release()
		return nil, err
	}

	log.Printf("Session started: %s + %s -> %s (mode %s, rumble %s)",
		h.primary.Name, h.assist.Name, h.virtual.Path(), cfg.Mode, cfg.Rumble)
	h.wg.Add(2)
	go h.inputLoop()
	go h.ffLoop()
	return h, nil
}

func (h *Handle) acquire(cfg Config) error {
	infos := h.src.Controllers()
	var ok bool
	if h.primary, ok = gamepad.FindController(infos, cfg.Primary); !ok {
		return fmt.Errorf("primary %q: %w", cfg.Primary, ErrUnknownController)
	}
	if h.assist, ok = gamepad.FindController(infos, cfg.Assist); !ok {
		return fmt.Errorf("assist %q: %w", cfg.Assist, ErrUnknownController)
	}
	if h.primary.ID == h.assist.ID {
		return ErrSameController
	}

	for _, info := range []gamepad.Info{h.primary, h.assist} {
		if err := h.hider.Hide(info); err != nil {
			return err
		}
	}

	virtual, err := h.deps.CreateVirtual(identityFor(cfg.Spoof, h.primary, h.assist))
	if err != nil {
		return fmt.Errorf("create virtual gamepad: %w", err)
	}
	h.virtual = virtual
	writer, err := h.deps.OpenWriter(virtual.Path())
	if err != nil {
		return fmt.Errorf("open virtual gamepad: %w", err)
	}
	h.writer = writer

	if cfg.Grab {
		g, ok := h.src.(gamepad.Grabber)
		if !ok {
			return errors.New("input source cannot grab controllers")
		}
		if err := g.Grab(h.primary.ID, h.assist.ID); err != nil {
			return err
		}
		h.grabbed = true
	}

	h.rumble = h.openRumble(cfg.Rumble, nil, nil)
	return nil
}

// release closes whatever acquire opened, in reverse order.
func (h *Handle) release() {
	for _, d := range h.rumble {
		d.Close()
	}
	h.rumble = nil
	if h.writer != nil {
		if err := h.writer.Close(); err != nil {
			log.Printf("Failed to close virtual writer: %v", err)
		}
	}
	if h.virtual != nil {
		if err := h.virtual.Close(); err != nil {
			log.Printf("Failed to destroy virtual gamepad: %v", err)
		}
	}
	if h.grabbed {
		h.src.(gamepad.Grabber).Release(h.primary.ID, h.assist.ID)
	}
	if err := h.src.Close(); err != nil {
		log.Printf("Failed to close input source: %v", err)
	}
	if err := h.hider.Restore(); err != nil {
		log.Printf("Failed to restore controllers: %v", err)
	}
}

func identityFor(s Spoof, primary, assist gamepad.Info) uinput.Identity {
	switch s {
	case SpoofPrimary:
		return uinput.Identity{Name: primary.Name, Vendor: primary.Vendor, Product: primary.Product}
	case SpoofAssist:
		return uinput.Identity{Name: assist.Name, Vendor: assist.Vendor, Product: assist.Product}
	}
	return uinput.Identity{}
}

// Shutdown stops both loops and releases every device. It is safe to call
// more than once.
func (h *Handle) Shutdown() {
	h.stopOnce.Do(func() {
		h.shutdown.Store(true)
		if err := h.deps.Unblock(h.virtual.Path()); err != nil {
			log.Printf("Failed to wake force feedback loop: %v", err)
		}
		h.wg.Wait()
		h.release()
		log.Println("Session stopped")
	})
}

// Settings returns the live settings of the session.
func (h *Handle) Settings() *Settings { return h.settings }

func (h *Handle) Status() Status {
	h.activeMu.Lock()
	active := h.active
	h.activeMu.Unlock()
	return Status{
		Mode:    h.settings.Mode(),
		Rumble:  h.settings.Rumble(),
		Primary: h.primary,
		Assist:  h.assist,
		Virtual: h.virtual.Path(),
		Active:  active,
	}
}

func (h *Handle) setActive(id gamepad.ControllerID) {
	h.activeMu.Lock()
	changed := h.active != id
	h.active = id
	h.activeMu.Unlock()
	if !changed {
		return
	}
	if id != "" {
		log.Printf("Active controller: %s", id)
	}
	h.settings.notify()
}
