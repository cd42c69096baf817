// Package ff keeps the force-feedback effects uploaded to the virtual device
// and replicates them onto physical controllers.
package ff

import (
	"encoding/binary"
	"fmt"
	"time"
	"unsafe"
)

// EffectID identifies an effect. Virtual ids are assigned by uinput,
// physical ids by the controller's driver.
type EffectID int16

// Effect types and global FF codes from linux/input.h.
const (
	TypeRumble   uint16 = 0x50
	TypePeriodic uint16 = 0x51
	TypeConstant uint16 = 0x52
	TypeSpring   uint16 = 0x53
	TypeFriction uint16 = 0x54
	TypeDamper   uint16 = 0x55
	TypeInertia  uint16 = 0x56
	TypeRamp     uint16 = 0x57

	CodeGain       uint16 = 0x60
	CodeAutocenter uint16 = 0x61

	// MaxEffects is the effect slot count the virtual device advertises.
	MaxEffects = 16
)

// Trigger mirrors struct ff_trigger.
type Trigger struct {
	Button   uint16
	Interval uint16
}

// Replay mirrors struct ff_replay.
type Replay struct {
	Length uint16
	Delay  uint16
}

// the largest union member, ff_periodic_effect, ends in a pointer
const unionSize = 24 + unsafe.Sizeof(uintptr(0))

// Effect mirrors struct ff_effect. The type specific parameters are kept as
// the raw union bytes; effects are replayed to hardware unchanged.
type Effect struct {
	Type      uint16
	ID        EffectID
	Direction uint16
	Trigger   Trigger
	Replay    Replay
	_         [2]byte
	Params    [unionSize]byte
}

// NewRumble builds an FF_RUMBLE effect.
func NewRumble(strong, weak uint16, length time.Duration) Effect {
	e := Effect{
		Type:   TypeRumble,
		ID:     -1,
		Replay: Replay{Length: uint16(length / time.Millisecond)},
	}
	binary.NativeEndian.PutUint16(e.Params[0:], strong)
	binary.NativeEndian.PutUint16(e.Params[2:], weak)
	return e
}

// Rumble returns the strong and weak magnitudes of an FF_RUMBLE effect.
func (e *Effect) Rumble() (strong, weak uint16, ok bool) {
	if e.Type != TypeRumble {
		return 0, 0, false
	}
	return binary.NativeEndian.Uint16(e.Params[0:]), binary.NativeEndian.Uint16(e.Params[2:]), true
}

func (e *Effect) String() string {
	if strong, weak, ok := e.Rumble(); ok {
		return fmt.Sprintf("rumble id=%d strong=%d weak=%d length=%dms", e.ID, strong, weak, e.Replay.Length)
	}
	return fmt.Sprintf("effect type=0x%x id=%d length=%dms", e.Type, e.ID, e.Replay.Length)
}

// RequestKind tags a Request.
type RequestKind uint8

const (
	RequestUpload RequestKind = iota + 1
	RequestErase
	RequestPlay
	RequestGain
	RequestAutocenter
)

func (k RequestKind) String() string {
	switch k {
	case RequestUpload:
		return "upload"
	case RequestErase:
		return "erase"
	case RequestPlay:
		return "play"
	case RequestGain:
		return "gain"
	case RequestAutocenter:
		return "autocenter"
	}
	return fmt.Sprintf("request(%d)", k)
}

// Request is one force-feedback command issued against the virtual device.
// Value is the play count for RequestPlay (0 stops) and the level for gain
// and autocenter.
type Request struct {
	Kind   RequestKind
	ID     EffectID
	Effect Effect
	Value  int32
}

func (r Request) String() string {
	switch r.Kind {
	case RequestUpload:
		return fmt.Sprintf("upload %d: %s", r.ID, &r.Effect)
	case RequestErase:
		return fmt.Sprintf("erase %d", r.ID)
	case RequestPlay:
		return fmt.Sprintf("play %d count=%d", r.ID, r.Value)
	}
	return fmt.Sprintf("%s %d", r.Kind, r.Value)
}
