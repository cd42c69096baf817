//go:build sdl

package gamepad

import (
	"fmt"
	"log"
	"runtime"
	"sort"
	"sync"

	"github.com/jupiterrider/purego-sdl3/sdl"
)

const pollDelayNS = 4_000_000 // ~250Hz

func init() {
	Register("sdl", func() (Source, error) { return OpenSDL() })
}

type sdlPad struct {
	info     Info
	joystick *sdl.Joystick
	mapping  *SDLMapping
	shadow   State
}

// sdlJoystick adapts an open joystick to JoystickReader.
type sdlJoystick struct{ js *sdl.Joystick }

func (j sdlJoystick) Axis(index int32) int16  { return sdl.GetJoystickAxis(j.js, index) }
func (j sdlJoystick) Button(index int32) bool { return sdl.GetJoystickButton(j.js, index) }
func (j sdlJoystick) NumButtons() int32       { return sdl.GetNumJoystickButtons(j.js) }

func (j sdlJoystick) Hat() uint8 {
	if sdl.GetNumJoystickHats(j.js) == 0 {
		return 0
	}
	return sdl.GetJoystickHat(j.js, 0)
}

// SDLSource reads controllers through the SDL3 joystick API. SDL is driven
// from one locked OS thread; Controllers and State are safe from any
// goroutine.
type SDLSource struct {
	*queue
	mu   sync.Mutex
	pads map[sdl.JoystickID]*sdlPad
	done chan struct{}
}

// OpenSDL initializes SDL and returns once the connected joysticks are open.
func OpenSDL() (*SDLSource, error) {
	s := &SDLSource{
		queue: newQueue(),
		pads:  make(map[sdl.JoystickID]*sdlPad),
		done:  make(chan struct{}),
	}
	ready := make(chan error, 1)
	go s.run(ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SDLSource) run(ready chan<- error) {
	defer close(s.done)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if !sdl.Init(sdl.InitJoystick) {
		ready <- fmt.Errorf("SDL init failed: %s", sdl.GetError())
		return
	}
	defer sdl.Quit()
	log.Println("SDL3 Joystick subsystem initialized")

	for _, id := range sdl.GetJoysticks() {
		s.openJoystick(id)
	}
	ready <- nil

	for !s.closing() {
		s.processEvents()
		s.poll()
		sdl.DelayNS(pollDelayNS)
	}
	s.closeAll()
}

func (s *SDLSource) processEvents() {
	var event sdl.Event
	for sdl.PollEvent(&event) {
		switch event.Type() {
		case sdl.EventJoystickAdded:
			s.openJoystick(event.JDevice().Which)
		case sdl.EventJoystickRemoved:
			s.removeJoystick(event.JDevice().Which)
		}
	}
}

func (s *SDLSource) openJoystick(instanceID sdl.JoystickID) {
	s.mu.Lock()
	_, exists := s.pads[instanceID]
	s.mu.Unlock()
	if exists {
		return
	}

	js := sdl.OpenJoystick(instanceID)
	if js == nil {
		log.Printf("Failed to open joystick %d: %s", instanceID, sdl.GetError())
		return
	}
	vendorID := sdl.GetJoystickVendor(js)
	productID := sdl.GetJoystickProduct(js)
	pad := &sdlPad{
		info: Info{
			ID:      ControllerID(fmt.Sprintf("sdl%d", sdl.GetJoystickID(js))),
			Name:    sdl.GetJoystickName(js),
			Vendor:  vendorID,
			Product: productID,
		},
		joystick: js,
		mapping:  SDLMappingFor(vendorID, productID),
	}

	s.mu.Lock()
	s.pads[instanceID] = pad
	s.mu.Unlock()
	log.Printf("Joystick connected: %s mapping=%s axes=%d buttons=%d hats=%d",
		pad.info, pad.mapping.Name, sdl.GetNumJoystickAxes(js), sdl.GetNumJoystickButtons(js), sdl.GetNumJoystickHats(js))
	s.publish(pad, pad.mapping.Read(sdlJoystick{js}, &pad.shadow), Connected)
}

func (s *SDLSource) removeJoystick(instanceID sdl.JoystickID) {
	s.mu.Lock()
	pad, exists := s.pads[instanceID]
	delete(s.pads, instanceID)
	s.mu.Unlock()
	if !exists {
		return
	}

	log.Printf("Joystick disconnected: %s", pad.info.Name)
	sdl.CloseJoystick(pad.joystick)
	s.publish(pad, State{}, Disconnected)
}

func (s *SDLSource) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, pad := range s.pads {
		sdl.CloseJoystick(pad.joystick)
		delete(s.pads, id)
	}
}

func (s *SDLSource) poll() {
	s.mu.Lock()
	pads := make([]*sdlPad, 0, len(s.pads))
	for _, pad := range s.pads {
		pads = append(pads, pad)
	}
	s.mu.Unlock()

	for _, pad := range pads {
		if !sdl.JoystickConnected(pad.joystick) {
			continue
		}
		s.publish(pad, pad.mapping.Read(sdlJoystick{pad.joystick}, &pad.shadow), 0)
	}
}

func (s *SDLSource) publish(p *sdlPad, next State, kind EventKind) {
	id := p.info.ID
	events := Diff(id, p.shadow, next)
	p.shadow = next
	if kind == Connected {
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

func (s *SDLSource) Controllers() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]Info, 0, len(s.pads))
	for _, pad := range s.pads {
		infos = append(infos, pad.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Close stops the SDL thread and waits for it to release SDL.
func (s *SDLSource) Close() error {
	s.shutdown()
	<-s.done
	return nil
}

var _ Source = (*SDLSource)(nil)
