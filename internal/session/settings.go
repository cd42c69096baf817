package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/soar/padmux/internal/mux"
)

// RumbleTarget selects which physical controllers replay force feedback.
type RumbleTarget int

const (
	RumblePrimary RumbleTarget = iota
	RumbleAssist
	RumbleBoth
	RumbleNone
)

var rumbleNames = [...]string{"primary", "assist", "both", "none"}

// RumbleTargets lists every rumble target.
func RumbleTargets() []RumbleTarget {
	return []RumbleTarget{RumblePrimary, RumbleAssist, RumbleBoth, RumbleNone}
}

func (r RumbleTarget) String() string {
	if r >= 0 && int(r) < len(rumbleNames) {
		return rumbleNames[r]
	}
	return fmt.Sprintf("rumble(%d)", int(r))
}

func ParseRumbleTarget(s string) (RumbleTarget, error) {
	for i, name := range rumbleNames {
		if strings.EqualFold(s, name) {
			return RumbleTarget(i), nil
		}
	}
	return RumblePrimary, fmt.Errorf("unknown rumble target %q (want primary, assist, both or none)", s)
}

func (r RumbleTarget) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *RumbleTarget) UnmarshalText(b []byte) error {
	parsed, err := ParseRumbleTarget(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Spoof selects whose identity the virtual controller presents.
type Spoof int

const (
	SpoofNone Spoof = iota
	SpoofPrimary
	SpoofAssist
)

var spoofNames = [...]string{"none", "primary", "assist"}

func Spoofs() []Spoof { return []Spoof{SpoofNone, SpoofPrimary, SpoofAssist} }

func (s Spoof) String() string {
	if s >= 0 && int(s) < len(spoofNames) {
		return spoofNames[s]
	}
	return fmt.Sprintf("spoof(%d)", int(s))
}

func ParseSpoof(s string) (Spoof, error) {
	if s == "" {
		return SpoofNone, nil
	}
	for i, name := range spoofNames {
		if strings.EqualFold(s, name) {
			return Spoof(i), nil
		}
	}
	return SpoofNone, fmt.Errorf("unknown spoof %q (want none, primary or assist)", s)
}

func (s Spoof) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Spoof) UnmarshalText(b []byte) error {
	parsed, err := ParseSpoof(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Settings is the runtime state shared by a session's loops and whoever
// controls it. Each loop reads it on every iteration.
type Settings struct {
	mu     sync.RWMutex
	mode   mux.Mode
	rumble RumbleTarget

	subsMu sync.Mutex
	subs   map[int]chan struct{}
	nextID int
}

func NewSettings(mode mux.Mode, rumble RumbleTarget) *Settings {
	return &Settings{mode: mode, rumble: rumble, subs: make(map[int]chan struct{})}
}

// UpdateMode sets the mode and returns the previous one.
func (s *Settings) UpdateMode(mode mux.Mode) mux.Mode {
	s.mu.Lock()
	old := s.mode
	s.mode = mode
	s.mu.Unlock()
	if old != mode {
		s.notify()
	}
	return old
}

// UpdateRumble sets the rumble target and returns the previous one.
func (s *Settings) UpdateRumble(rumble RumbleTarget) RumbleTarget {
	s.mu.Lock()
	old := s.rumble
	s.rumble = rumble
	s.mu.Unlock()
	if old != rumble {
		s.notify()
	}
	return old
}

func (s *Settings) Mode() mux.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Settings) Rumble() RumbleTarget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rumble
}

// Subscribe returns a channel that receives a value after changes. Several
// changes may collapse into one notification. cancel stops delivery.
func (s *Settings) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subsMu.Unlock()
	return ch, func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Settings) notify() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
