// Package control owns the lifecycle of the mux session for the front-ends:
// the tray, the status server and the run command all drive one Controller.
package control

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/soar/padmux/internal/gamepad"
	"github.com/soar/padmux/internal/mux"
	"github.com/soar/padmux/internal/session"
)

var (
	ErrRunning    = errors.New("session already running")
	ErrNotRunning = errors.New("no session running")
)

// SourceOpener opens the input source a session takes over.
type SourceOpener func() (gamepad.Source, error)

// Status is what front-ends display.
type Status struct {
	Running bool            `json:"running"`
	Config  Settings        `json:"config"`
	Session *session.Status `json:"session,omitempty"`
}

// Settings is the selection used for the next start.
type Settings struct {
	Primary string               `json:"primary"`
	Assist  string               `json:"assist"`
	Mode    mux.Mode             `json:"mode"`
	Rumble  session.RumbleTarget `json:"rumble"`
}

type Controller struct {
	open SourceOpener
	deps session.Deps

	mu     sync.Mutex
	cfg    session.Config
	handle *session.Handle
	// stops forwarding the running session's setting changes
	unwatch func()

	subsMu sync.Mutex
	subs   map[int]chan struct{}
	nextID int
}

func New(open SourceOpener, deps session.Deps, cfg session.Config) *Controller {
	return &Controller{open: open, deps: deps, cfg: cfg, subs: make(map[int]chan struct{})}
}

// Start runs a session with the current configuration.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil {
		return ErrRunning
	}
	src, err := c.open()
	if err != nil {
		return fmt.Errorf("open input source: %w", err)
	}
	h, err := session.Start(src, c.cfg, c.deps)
	if err != nil {
		return err
	}
	c.handle = h

	ch, cancel := h.Settings().Subscribe()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				c.notify()
			case <-done:
				return
			}
		}
	}()
	c.unwatch = func() {
		cancel()
		close(done)
	}
	c.notify()
	return nil
}

// Stop shuts the running session down.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return ErrNotRunning
	}
	c.unwatch()
	c.handle.Shutdown()
	c.handle = nil
	c.notify()
	return nil
}

func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle != nil
}

// Config returns the configuration the next Start uses.
func (c *Controller) Config() session.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Configure replaces the configuration for the next start. The running
// session only picks up the mode and rumble target.
func (c *Controller) Configure(cfg session.Config) {
	c.mu.Lock()
	c.cfg = cfg
	if c.handle != nil {
		c.handle.Settings().UpdateMode(cfg.Mode)
		c.handle.Settings().UpdateRumble(cfg.Rumble)
	}
	c.mu.Unlock()
	c.notify()
}

// SetMode changes the mode of the running session and of the next one.
func (c *Controller) SetMode(m mux.Mode) {
	c.mu.Lock()
	c.cfg.Mode = m
	if c.handle != nil {
		if old := c.handle.Settings().UpdateMode(m); old != m {
			log.Printf("Mode: %s -> %s", old, m)
		}
	}
	c.mu.Unlock()
	c.notify()
}

// SetRumble changes the rumble target of the running session and of the
// next one.
func (c *Controller) SetRumble(r session.RumbleTarget) {
	c.mu.Lock()
	c.cfg.Rumble = r
	if c.handle != nil {
		if old := c.handle.Settings().UpdateRumble(r); old != r {
			log.Printf("Rumble: %s -> %s", old, r)
		}
	}
	c.mu.Unlock()
	c.notify()
}

// Settings returns the live settings of the running session.
func (c *Controller) Settings() (*session.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return nil, ErrNotRunning
	}
	return c.handle.Settings(), nil
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Running: c.handle != nil,
		Config: Settings{
			Primary: c.cfg.Primary,
			Assist:  c.cfg.Assist,
			Mode:    c.cfg.Mode,
			Rumble:  c.cfg.Rumble,
		},
	}
	if c.handle != nil {
		s := c.handle.Status()
		st.Session = &s
	}
	return st
}

// Controllers lists the controllers a session could use. It opens the
// source briefly and so fails while a session holds it.
func (c *Controller) Controllers() ([]gamepad.Info, error) {
	if c.Running() {
		return nil, ErrRunning
	}
	src, err := c.open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return src.Controllers(), nil
}

// Subscribe returns a channel signalled after every status change.
func (c *Controller) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.subsMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.subsMu.Unlock()
	return ch, func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

func (c *Controller) notify() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
