package gamepad

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// VirtualVersion is the input_id version stamped on devices created by this
// program; sources skip devices carrying it so the merged pad never feeds
// itself.
const VirtualVersion uint16 = 0x4242

// Source yields normalized events from a set of physical controllers and the
// live state of each. State reflects every event already returned by
// NextEvent and nothing newer.
type Source interface {
	StateReader
	Controllers() []Info
	NextEvent(timeout time.Duration) (Event, bool)
	Close() error
}

// Grabber is implemented by sources that can take exclusive access of a
// controller's input so other programs stop seeing it.
type Grabber interface {
	Grab(ids ...ControllerID) error
	Release(ids ...ControllerID)
}

// Backend opens a Source.
type Backend func() (Source, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]Backend{}
)

// Register makes a source backend available by name.
func Register(name string, b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = b
}

// Open opens the named backend.
func Open(name string) (Source, error) {
	backendsMu.RLock()
	b, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown gamepad source %q (available: %s)", name, strings.Join(Backends(), ", "))
	}
	return b()
}

// Backends lists the registered backend names.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FindController looks a controller up by id, device path, list index or
// name, in that order. Names compare case-insensitively.
func FindController(infos []Info, key string) (Info, bool) {
	if key == "" {
		return Info{}, false
	}
	for _, info := range infos {
		if string(info.ID) == key || info.Path == key {
			return info, true
		}
	}
	if i, err := strconv.Atoi(key); err == nil && i >= 0 && i < len(infos) {
		return infos[i], true
	}
	for _, info := range infos {
		if strings.EqualFold(info.Name, key) {
			return info, true
		}
	}
	return Info{}, false
}

// queue is the consumer side shared by the source backends: producers push
// events, NextEvent folds each into the tracker as it is handed out.
type queue struct {
	tracker   *Tracker
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func newQueue() *queue {
	return &queue{
		tracker: NewTracker(),
		events:  make(chan Event, 256),
		done:    make(chan struct{}),
	}
}

func (q *queue) push(ev Event) bool {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case q.events <- ev:
		return true
	case <-q.done:
		return false
	}
}

func (q *queue) NextEvent(timeout time.Duration) (Event, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-q.events:
		q.tracker.Apply(ev)
		return ev, true
	case <-timer.C:
		return Event{}, false
	case <-q.done:
		return Event{}, false
	}
}

func (q *queue) State(id ControllerID) State {
	return q.tracker.State(id)
}

func (q *queue) closing() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

func (q *queue) shutdown() {
	q.closeOnce.Do(func() { close(q.done) })
}
