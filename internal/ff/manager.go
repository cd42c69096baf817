package ff

import (
	"slices"
	"sync"
)

type record struct {
	effect  Effect
	playing bool
}

// Manager is the master copy of every effect uploaded to the virtual device
// and its play state. Physical devices are synchronized from it.
type Manager struct {
	mu         sync.RWMutex
	effects    map[EffectID]*record
	gain       int32
	autocenter int32
}

func NewManager() *Manager {
	return &Manager{
		effects:    make(map[EffectID]*record),
		gain:       -1,
		autocenter: -1,
	}
}

// Upload stores or replaces an effect. A replaced effect stops playing.
func (m *Manager) Upload(id EffectID, e Effect) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = id
	m.effects[id] = &record{effect: e}
}

// Erase forgets an effect. Unknown ids are ignored.
func (m *Manager) Erase(id EffectID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.effects, id)
}

// SetPlaying records the play state of an effect. Unknown ids are ignored so
// a play racing an erase is harmless.
func (m *Manager) SetPlaying(id EffectID, playing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.effects[id]; ok {
		r.playing = playing
	}
}

// Effect returns a stored effect.
func (m *Manager) Effect(id EffectID) (Effect, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.effects[id]
	if !ok {
		return Effect{}, false
	}
	return r.effect, true
}

// IDs lists the stored effect ids in ascending order.
func (m *Manager) IDs() []EffectID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]EffectID, 0, len(m.effects))
	for id := range m.effects {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Effects returns every stored effect ordered by id.
func (m *Manager) Effects() []Effect {
	ids := m.IDs()
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Effect, 0, len(ids))
	for _, id := range ids {
		if r, ok := m.effects[id]; ok {
			out = append(out, r.effect)
		}
	}
	return out
}

// Playing lists the ids of playing effects in ascending order.
func (m *Manager) Playing() []EffectID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []EffectID
	for id, r := range m.effects {
		if r.playing {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of stored effects.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.effects)
}

// SetGain remembers the last global gain so reopened devices get it back.
func (m *Manager) SetGain(v uint16) {
	m.mu.Lock()
	m.gain = int32(v)
	m.mu.Unlock()
}

// Gain returns the last gain, false when none was set.
func (m *Manager) Gain() (uint16, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint16(m.gain), m.gain >= 0
}

func (m *Manager) SetAutocenter(v uint16) {
	m.mu.Lock()
	m.autocenter = int32(v)
	m.mu.Unlock()
}

func (m *Manager) Autocenter() (uint16, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint16(m.autocenter), m.autocenter >= 0
}
