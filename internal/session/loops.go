package session

import (
	"log"
	"runtime"
	"slices"
	"time"

	"github.com/soar/padmux/internal/ff"
	"github.com/soar/padmux/internal/gamepad"
	"github.com/soar/padmux/internal/mux"
)

const (
	inputTimeout = time.Second
	ffTimeout    = 250 * time.Millisecond
	ffErrorDelay = 100 * time.Millisecond
)

// inputLoop arbitrates source events into the virtual device until shutdown.
func (h *Handle) inputLoop() {
	defer h.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	engine := mux.NewEngine(h.settings.Mode())
	for !h.shutdown.Load() {
		ev, ok := h.src.NextEvent(inputTimeout)
		if mode := h.settings.Mode(); mode != engine.Mode() {
			engine = mux.NewEngine(mode)
			log.Printf("Mode: %s", mode)
			active, _ := engine.Active()
			h.setActive(active)
		}
		if !ok {
			continue
		}

		switch ev.Kind {
		case gamepad.Connected, gamepad.Disconnected:
			if ev.Controller == h.primary.ID || ev.Controller == h.assist.ID {
				log.Printf("Controller %s %s", ev.Controller, ev.Kind)
			}
			continue
		}

		debugf("%s", ev)
		batch := mux.Finish(engine.HandleEvent(ev, h.primary.ID, h.assist.ID, h.src))
		active, _ := engine.Active()
		h.setActive(active)
		if batch == nil {
			continue
		}
		if Verbose {
			for _, out := range batch {
				debugf("-> %s", out)
			}
		}
		if err := h.writer.WriteEvents(batch); err != nil {
			log.Printf("Failed to write events: %v", err)
		}
	}
}

// ffLoop mirrors the virtual device's force feedback onto the rumble target
// until shutdown.
func (h *Handle) ffLoop() {
	defer h.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	manager := ff.NewManager()
	target := h.settings.Rumble()
	for !h.shutdown.Load() {
		if next := h.settings.Rumble(); next != target {
			h.rumble = h.openRumble(next, h.rumble, manager)
			target = next
			log.Printf("Rumble target: %s", target)
		}

		reqs, err := h.virtual.FetchFF(ffTimeout)
		for _, req := range reqs {
			debugf("FF: %s", req)
			ff.Dispatch(req, manager, h.rumble)
		}
		if err != nil {
			log.Printf("FF: %v", err)
			time.Sleep(ffErrorDelay)
		}
	}
}

// targets returns the controllers a rumble target covers.
func (h *Handle) targets(target RumbleTarget) []gamepad.Info {
	switch target {
	case RumblePrimary:
		return []gamepad.Info{h.primary}
	case RumbleAssist:
		return []gamepad.Info{h.assist}
	case RumbleBoth:
		return []gamepad.Info{h.primary, h.assist}
	}
	return nil
}

// openRumble builds the device set for target. Devices already in current
// are reused. New devices receive every effect m holds; dropped devices stop
// their effects and are closed.
func (h *Handle) openRumble(target RumbleTarget, current []*ff.Device, m *ff.Manager) []*ff.Device {
	var next []*ff.Device
	for _, info := range h.targets(target) {
		if i := slices.IndexFunc(current, func(d *ff.Device) bool { return d.Path == info.Path }); i >= 0 {
			next = append(next, current[i])
			continue
		}
		if !h.deps.SupportsFF(info.Path) {
			log.Printf("%s has no force feedback, skipping", info.Name)
			continue
		}
		d, err := ff.OpenDevice(info.Path, info.Name, h.deps.OpenFF)
		if err != nil {
			log.Printf("FF: %v", err)
			continue
		}
		if m != nil {
			if errs := d.SyncEffects(m); len(errs) > 0 {
				log.Printf("FF: %v", ff.SyncError(errs))
			}
		}
		next = append(next, d)
	}

	for _, d := range current {
		if slices.Contains(next, d) {
			continue
		}
		d.StopAll(m)
		if err := d.Close(); err != nil {
			log.Printf("FF: close %s: %v", d, err)
		}
	}
	return next
}
