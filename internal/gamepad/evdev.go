package gamepad

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	evdev "github.com/holoplot/go-evdev"
)

const reopenInterval = time.Second

func init() {
	Register("evdev", func() (Source, error) { return OpenEvdev() })
}

type evdevPad struct {
	info    Info
	dev     *evdev.InputDevice
	mapping *DeviceMapping
	shadow  State // owned by the pad's read goroutine
	grabbed bool
}

// EvdevSource reads every gamepad under /dev/input through evdev.
type EvdevSource struct {
	*queue
	mu   sync.Mutex
	pads map[ControllerID]*evdevPad
	wg   sync.WaitGroup
}

// OpenEvdev opens all gamepad event nodes and starts reading them.
func OpenEvdev() (*EvdevSource, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}

	s := &EvdevSource{
		queue: newQueue(),
		pads:  make(map[ControllerID]*evdevPad),
	}
	for _, p := range paths {
		pad, err := openPad(p.Path)
		if err != nil {
			if !errors.Is(err, errNotGamepad) && !errors.Is(err, os.ErrPermission) {
				log.Printf("Skipping %s: %v", p.Path, err)
			}
			continue
		}
		s.pads[pad.info.ID] = pad
		log.Printf("Gamepad found: %s", pad.info)
	}

	for _, pad := range s.pads {
		s.wg.Add(1)
		go s.readLoop(pad)
	}
	return s, nil
}

var errNotGamepad = errors.New("not a gamepad")

func openPad(path string) (*evdevPad, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, err
	}
	pad, err := describePad(dev)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return pad, nil
}

func describePad(dev *evdev.InputDevice) (*evdevPad, error) {
	if !isGamepad(dev) {
		return nil, errNotGamepad
	}
	id, err := dev.InputID()
	if err != nil {
		return nil, fmt.Errorf("read input id: %w", err)
	}
	if id.Version == VirtualVersion {
		return nil, errNotGamepad
	}
	name, err := dev.Name()
	if err != nil {
		return nil, fmt.Errorf("read name: %w", err)
	}
	abs, err := dev.AbsInfos()
	if err != nil {
		return nil, fmt.Errorf("read abs info: %w", err)
	}

	path := dev.Path()
	pad := &evdevPad{
		info: Info{
			ID:      ControllerID(filepath.Base(path)),
			Name:    name,
			Path:    path,
			Vendor:  id.Vendor,
			Product: id.Product,
		},
		dev:     dev,
		mapping: NewDeviceMapping(abs),
	}
	return pad, nil
}

// isGamepad checks for analog sticks plus at least one gamepad button.
func isGamepad(dev *evdev.InputDevice) bool {
	var hasKey, hasAbs bool
	for _, t := range dev.CapableTypes() {
		switch t {
		case evdev.EV_KEY:
			hasKey = true
		case evdev.EV_ABS:
			hasAbs = true
		}
	}
	if !hasKey || !hasAbs {
		return false
	}

	hasStick := false
	for _, code := range dev.CapableEvents(evdev.EV_ABS) {
		if code == evdev.ABS_X || code == evdev.ABS_Y {
			hasStick = true
			break
		}
	}
	if !hasStick {
		return false
	}
	for _, code := range dev.CapableEvents(evdev.EV_KEY) {
		if _, ok := keyButtons[code]; ok {
			return true
		}
	}
	return false
}

// initialState reads the current key and axis state so a controller that is
// already being held when the program starts is reported correctly.
func (p *evdevPad) initialState() State {
	var s State
	s.Connected = true
	if keys, err := p.dev.State(evdev.EV_KEY); err == nil {
		for code, down := range keys {
			if !down {
				continue
			}
			p.mapping.Apply(&s, &evdev.InputEvent{Type: evdev.EV_KEY, Code: code, Value: 1})
		}
	}
	if abs, err := p.dev.AbsInfos(); err == nil {
		for code, info := range abs {
			p.mapping.Apply(&s, &evdev.InputEvent{Type: evdev.EV_ABS, Code: code, Value: info.Value})
		}
	}
	return s
}

func (s *EvdevSource) readLoop(p *evdevPad) {
	defer s.wg.Done()

	s.publish(p, p.initialState(), Connected)
	for {
		ev, err := p.dev.ReadOne()
		if err != nil {
			if s.closing() {
				return
			}
			log.Printf("Controller disconnected: %s: %v", p.info.Name, err)
			s.publish(p, State{}, Disconnected)
			if !s.reopen(p) {
				return
			}
			s.publish(p, p.initialState(), Connected)
			continue
		}
		if ev.Type == evdev.EV_SYN {
			continue
		}

		next := p.shadow
		if !p.mapping.Apply(&next, ev) {
			continue
		}
		s.publish(p, next, 0)
	}
}

// publish pushes the events leading from the pad's shadow state to next.
// A non-zero kind is sent as a connection event ahead of them.
func (s *EvdevSource) publish(p *evdevPad, next State, kind EventKind) {
	id := p.info.ID
	events := Diff(id, p.shadow, next)
	p.shadow = next
	if kind == Connected {
		p.shadow.Connected = true
		s.push(Event{Controller: id, Kind: Connected})
	}
	for _, ev := range events {
		if !s.push(ev) {
			return
		}
	}
	if kind == Disconnected {
		s.push(Event{Controller: id, Kind: Disconnected})
	}
}

// reopen waits for the pad's node to come back. It gives up when the source
// closes.
func (s *EvdevSource) reopen(p *evdevPad) bool {
	p.dev.Close()
	ticker := time.NewTicker(reopenInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return false
		case <-ticker.C:
		}
		dev, err := evdev.Open(p.info.Path)
		if err != nil {
			continue
		}
		fresh, err := describePad(dev)
		if err != nil || fresh.info.Name != p.info.Name {
			dev.Close()
			continue
		}

		s.mu.Lock()
		p.dev = dev
		p.mapping = fresh.mapping
		if p.grabbed {
			if err := dev.Grab(); err != nil {
				log.Printf("Failed to grab %s after reconnect: %v", p.info.Path, err)
			}
		}
		s.mu.Unlock()
		log.Printf("Controller reconnected: %s", p.info)
		return true
	}
}

// Controllers lists the pads found at open time, sorted by id.
func (s *EvdevSource) Controllers() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]Info, 0, len(s.pads))
	for _, p := range s.pads {
		infos = append(infos, p.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Grab takes exclusive access of the given pads' input.
func (s *EvdevSource) Grab(ids ...ControllerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		p, ok := s.pads[id]
		if !ok {
			return fmt.Errorf("grab %s: unknown controller", id)
		}
		if p.grabbed {
			continue
		}
		if err := p.dev.Grab(); err != nil {
			return fmt.Errorf("grab %s: %w", p.info.Path, err)
		}
		p.grabbed = true
	}
	return nil
}

// Release gives up exclusive access taken by Grab.
func (s *EvdevSource) Release(ids ...ControllerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		p, ok := s.pads[id]
		if !ok || !p.grabbed {
			continue
		}
		if err := p.dev.Ungrab(); err != nil {
			log.Printf("Failed to release %s: %v", p.info.Path, err)
		}
		p.grabbed = false
	}
}

// Close stops every reader and closes the devices.
func (s *EvdevSource) Close() error {
	s.shutdown()
	s.mu.Lock()
	for _, p := range s.pads {
		p.dev.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}
