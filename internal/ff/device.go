package ff

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrNotSupported is returned when a controller has no force-feedback
// support.
var ErrNotSupported = errors.New("force feedback not supported")

// Handle is an open force-feedback capable device node.
type Handle interface {
	// Upload sends an effect and returns the id the device assigned. An
	// effect whose ID is an id previously returned updates it in place.
	Upload(e Effect) (EffectID, error)
	Erase(id EffectID) error
	// Play starts an effect count times; a count of 0 stops it.
	Play(id EffectID, count int32) error
	SetGain(v uint16) error
	SetAutocenter(v uint16) error
	Close() error
}

// Opener opens a Handle on a device path.
type Opener func(path string) (Handle, error)

// IsDisconnect reports whether err means the device node is gone.
func IsDisconnect(err error) bool {
	return errors.Is(err, unix.ENODEV)
}

// EffectError is a failure for one effect during a synchronization.
type EffectError struct {
	ID  EffectID
	Err error
}

func (e EffectError) Error() string {
	return fmt.Sprintf("effect %d: %v", e.ID, e.Err)
}

func (e EffectError) Unwrap() error { return e.Err }

// SyncError collects the effects that failed to synchronize.
type SyncError []EffectError

func (e SyncError) Error() string {
	parts := make([]string, len(e))
	for i, ee := range e {
		parts[i] = ee.Error()
	}
	return "sync effects: " + strings.Join(parts, "; ")
}

// Device replicates effects onto one physical controller. It maps virtual
// effect ids to the ids its own driver assigned.
type Device struct {
	Path string
	Name string

	open       Opener
	handle     Handle
	handles    map[EffectID]EffectID
	recovering bool
}

// OpenDevice opens path with open.
func OpenDevice(path, name string, open Opener) (*Device, error) {
	h, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("open ff device %s: %w", path, err)
	}
	return &Device{
		Path:    path,
		Name:    name,
		open:    open,
		handle:  h,
		handles: make(map[EffectID]EffectID),
	}, nil
}

func (d *Device) String() string {
	if d.Name == "" {
		return d.Path
	}
	return fmt.Sprintf("%s (%s)", d.Name, d.Path)
}

// Recovering reports whether the device lost its node and has not been
// reopened yet.
func (d *Device) Recovering() bool { return d.recovering }

// Has reports whether the device holds a physical copy of a virtual effect.
func (d *Device) Has(id EffectID) bool {
	_, ok := d.handles[id]
	return ok
}

var errGone = fmt.Errorf("device not open: %w", unix.ENODEV)

// UploadEffect uploads or updates the physical copy of virtual effect id.
func (d *Device) UploadEffect(id EffectID, e Effect) error {
	if d.handle == nil {
		return errGone
	}
	e.ID = -1
	if phys, ok := d.handles[id]; ok {
		e.ID = phys
	}
	phys, err := d.handle.Upload(e)
	if err != nil {
		return fmt.Errorf("upload effect %d to %s: %w", id, d.Path, err)
	}
	d.handles[id] = phys
	return nil
}

// EraseEffect stops and removes the physical copy of id. Effects the device
// never received are a no-op.
func (d *Device) EraseEffect(id EffectID) error {
	phys, ok := d.handles[id]
	if !ok {
		return nil
	}
	delete(d.handles, id)
	if d.handle == nil {
		return errGone
	}
	stopErr := d.handle.Play(phys, 0)
	if err := d.handle.Erase(phys); err != nil {
		return fmt.Errorf("erase effect %d on %s: %w", id, d.Path, err)
	}
	if stopErr != nil {
		return fmt.Errorf("stop effect %d on %s: %w", id, d.Path, stopErr)
	}
	return nil
}

// ControlEffect plays (once) or stops the physical copy of id. Effects the
// device never received are a no-op.
func (d *Device) ControlEffect(id EffectID, playing bool) error {
	phys, ok := d.handles[id]
	if !ok {
		return nil
	}
	if d.handle == nil {
		return errGone
	}
	var count int32
	if playing {
		count = 1
	}
	if err := d.handle.Play(phys, count); err != nil {
		return fmt.Errorf("play effect %d on %s: %w", id, d.Path, err)
	}
	return nil
}

func (d *Device) SetGain(v uint16) error {
	if d.handle == nil {
		return errGone
	}
	if err := d.handle.SetGain(v); err != nil {
		return fmt.Errorf("set gain on %s: %w", d.Path, err)
	}
	return nil
}

func (d *Device) SetAutocenter(v uint16) error {
	if d.handle == nil {
		return errGone
	}
	if err := d.handle.SetAutocenter(v); err != nil {
		return fmt.Errorf("set autocenter on %s: %w", d.Path, err)
	}
	return nil
}

// SyncEffects uploads every effect of m the device is missing and plays
// every effect m marks as playing. It keeps going past failures.
func (d *Device) SyncEffects(m *Manager) []EffectError {
	var errs []EffectError
	for _, e := range m.Effects() {
		if d.Has(e.ID) {
			continue
		}
		if err := d.UploadEffect(e.ID, e); err != nil {
			errs = append(errs, EffectError{ID: e.ID, Err: err})
		}
	}
	for _, id := range m.Playing() {
		if err := d.ControlEffect(id, true); err != nil {
			errs = append(errs, EffectError{ID: id, Err: err})
		}
	}
	if g, ok := m.Gain(); ok {
		if err := d.SetGain(g); err != nil {
			log.Printf("FF: %v", err)
		}
	}
	if a, ok := m.Autocenter(); ok {
		if err := d.SetAutocenter(a); err != nil {
			log.Printf("FF: %v", err)
		}
	}
	return errs
}

// Recover reopens the device by path, drops the now invalid effect ids and
// synchronizes from m. If the reopen fails the device stays recovering and
// the caller retries on a later event. Synchronization failures are returned
// as a SyncError after the device is back.
func (d *Device) Recover(m *Manager) error {
	if d.handle != nil {
		if err := d.handle.Close(); err != nil {
			log.Printf("FF: close %s: %v", d, err)
		}
		d.handle = nil
	}
	// the old node's effect ids died with it
	d.handles = make(map[EffectID]EffectID)
	d.recovering = true
	h, err := d.open(d.Path)
	if err != nil {
		return fmt.Errorf("reopen %s: %w", d.Path, err)
	}
	d.handle = h
	d.recovering = false
	if errs := d.SyncEffects(m); len(errs) > 0 {
		return SyncError(errs)
	}
	return nil
}

// StopAll stops every playing effect of m on this device. Used when the
// device leaves the rumble target.
func (d *Device) StopAll(m *Manager) {
	for _, id := range m.Playing() {
		if err := d.ControlEffect(id, false); err != nil {
			log.Printf("FF: %v", err)
		}
	}
}

// Close closes the handle. The kernel drops the effects it uploaded.
func (d *Device) Close() error {
	if d.handle == nil {
		return nil
	}
	clear(d.handles)
	err := d.handle.Close()
	d.handle = nil
	return err
}
