package session

import (
	"encoding/json"
	"errors"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/soar/padmux/internal/ff"
	"github.com/soar/padmux/internal/gamepad"
	"github.com/soar/padmux/internal/mux"
	"github.com/soar/padmux/internal/translate"
	"github.com/soar/padmux/internal/uinput"
)

var (
	padA = gamepad.Info{ID: "event10", Name: "Pad A", Path: "/dev/input/event10", Vendor: 0x045e, Product: 0x028e}
	padB = gamepad.Info{ID: "event11", Name: "Pad B", Path: "/dev/input/event11", Vendor: 0x054c, Product: 0x09cc}
)

type fakeSource struct {
	infos   []gamepad.Info
	tracker *gamepad.Tracker
	events  chan gamepad.Event
	done    chan struct{}
	once    sync.Once
	closed  atomic.Bool

	mu      sync.Mutex
	grabbed []gamepad.ControllerID
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		infos:   []gamepad.Info{padA, padB},
		tracker: gamepad.NewTracker(),
		events:  make(chan gamepad.Event, 16),
		done:    make(chan struct{}),
	}
}

func (s *fakeSource) Controllers() []gamepad.Info { return s.infos }

func (s *fakeSource) State(id gamepad.ControllerID) gamepad.State { return s.tracker.State(id) }

func (s *fakeSource) NextEvent(timeout time.Duration) (gamepad.Event, bool) {
	select {
	case ev := <-s.events:
		s.tracker.Apply(ev)
		return ev, true
	case <-time.After(timeout):
	case <-s.done:
	}
	return gamepad.Event{}, false
}

func (s *fakeSource) Close() error {
	s.closed.Store(true)
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *fakeSource) Grab(ids ...gamepad.ControllerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grabbed = append(s.grabbed, ids...)
	return nil
}

func (s *fakeSource) Release(ids ...gamepad.ControllerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grabbed = nil
}

type fakeVirtual struct {
	identity uinput.Identity
	reqs     chan []ff.Request
	wake     chan struct{}
	closed   atomic.Bool
}

func (v *fakeVirtual) Path() string { return "/dev/input/event99" }

func (v *fakeVirtual) FetchFF(timeout time.Duration) ([]ff.Request, error) {
	select {
	case reqs := <-v.reqs:
		return reqs, nil
	case <-v.wake:
	case <-time.After(timeout):
	}
	return nil, nil
}

func (v *fakeVirtual) Close() error {
	v.closed.Store(true)
	return nil
}

type fakeWriter struct {
	batches chan []mux.OutputEvent
	closed  atomic.Bool
}

func (w *fakeWriter) WriteEvents(batch []mux.OutputEvent) error {
	w.batches <- batch
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed.Store(true)
	return nil
}

// fakeRumble is a locked force-feedback handle the test inspects while the
// FF loop drives it.
type fakeRumble struct {
	mu      sync.Mutex
	next    ff.EffectID
	effects map[ff.EffectID]ff.Effect
	playing map[ff.EffectID]bool
	closed  bool
}

func newFakeRumble() *fakeRumble {
	return &fakeRumble{effects: map[ff.EffectID]ff.Effect{}, playing: map[ff.EffectID]bool{}}
}

func (r *fakeRumble) Upload(e ff.Effect) (ff.EffectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID < 0 {
		e.ID = r.next
		r.next++
	}
	r.effects[e.ID] = e
	return e.ID, nil
}

func (r *fakeRumble) Erase(id ff.EffectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.effects, id)
	delete(r.playing, id)
	return nil
}

func (r *fakeRumble) Play(id ff.EffectID, count int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playing[id] = count > 0
	return nil
}

func (r *fakeRumble) SetGain(uint16) error       { return nil }
func (r *fakeRumble) SetAutocenter(uint16) error { return nil }

func (r *fakeRumble) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeRumble) state() (effects, playing int, closed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.playing {
		if p {
			playing++
		}
	}
	return len(r.effects), playing, r.closed
}

type rig struct {
	src      *fakeSource
	virtual  *fakeVirtual
	writer   *fakeWriter
	rumble   map[string]*fakeRumble
	unblocks atomic.Int32
	deps     Deps
}

func newRig() *rig {
	r := &rig{
		src:     newFakeSource(),
		virtual: &fakeVirtual{reqs: make(chan []ff.Request, 4), wake: make(chan struct{})},
		writer:  &fakeWriter{batches: make(chan []mux.OutputEvent, 16)},
		rumble:  map[string]*fakeRumble{padA.Path: newFakeRumble(), padB.Path: newFakeRumble()},
	}
	r.deps = Deps{
		CreateVirtual: func(id uinput.Identity) (VirtualDevice, error) {
			r.virtual.identity = id
			return r.virtual, nil
		},
		OpenWriter: func(string) (EventWriter, error) { return r.writer, nil },
		OpenFF: func(path string) (ff.Handle, error) {
			h, ok := r.rumble[path]
			if !ok {
				return nil, ff.ErrNotSupported
			}
			return h, nil
		},
		SupportsFF: func(string) bool { return true },
		Unblock: func(string) error {
			if r.unblocks.Add(1) == 1 {
				close(r.virtual.wake)
			}
			return nil
		},
		FS: afero.NewMemMapFs(),
	}
	return r
}

func (r *rig) start(t *testing.T, cfg Config) *Handle {
	t.Helper()
	if cfg.Primary == "" {
		cfg.Primary, cfg.Assist = "Pad A", "Pad B"
	}
	h, err := Start(r.src, cfg, r.deps)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(h.Shutdown)
	return h
}

func (r *rig) batch(t *testing.T) []mux.OutputEvent {
	t.Helper()
	select {
	case b := <-r.writer.batches:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("no batch written")
	}
	return nil
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func key(b gamepad.Button, pressed bool) mux.OutputEvent {
	code, _ := translate.ButtonToKey(b)
	return mux.KeyEvent(code, pressed)
}

func TestStartRejectsControllers(t *testing.T) {
	tests := []struct {
		name            string
		primary, assist string
		want            error
	}{
		{"same", "Pad A", "event10", ErrSameController},
		{"unknown primary", "Pad C", "Pad B", ErrUnknownController},
		{"unknown assist", "Pad A", "", ErrUnknownController},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig()
			_, err := Start(r.src, Config{Primary: tt.primary, Assist: tt.assist}, r.deps)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !r.src.closed.Load() {
				t.Error("source should be closed on failure")
			}
			if r.virtual.closed.Load() {
				t.Error("virtual device was never created and must not be closed")
			}
		})
	}
}

func TestStartCleansUpOnWriterFailure(t *testing.T) {
	r := newRig()
	r.deps.OpenWriter = func(string) (EventWriter, error) { return nil, errors.New("boom") }
	if _, err := Start(r.src, Config{Primary: "0", Assist: "1"}, r.deps); err == nil {
		t.Fatal("expected error")
	}
	if !r.virtual.closed.Load() || !r.src.closed.Load() {
		t.Error("virtual device and source should be closed")
	}
}

func TestSpoofIdentity(t *testing.T) {
	r := newRig()
	r.start(t, Config{Spoof: SpoofAssist})
	want := uinput.Identity{Name: padB.Name, Vendor: padB.Vendor, Product: padB.Product}
	if r.virtual.identity != want {
		t.Errorf("identity = %+v, want %+v", r.virtual.identity, want)
	}
}

func TestInputForwarding(t *testing.T) {
	r := newRig()
	r.start(t, Config{Mode: mux.Priority})

	r.src.events <- gamepad.Event{Controller: padA.ID, Kind: gamepad.ButtonPressed, Button: gamepad.ButtonSouth}
	got := r.batch(t)
	want := []mux.OutputEvent{key(gamepad.ButtonSouth, true), mux.SyncEvent()}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("batch = %v, want %v", got, want)
	}
}

func TestModeChangeAppliesToNextEvent(t *testing.T) {
	r := newRig()
	h := r.start(t, Config{Mode: mux.Average})

	if old := h.Settings().UpdateMode(mux.Toggle); old != mux.Average {
		t.Errorf("old mode = %s", old)
	}
	// Toggle starts on the primary controller, so assist input is dropped.
	r.src.events <- gamepad.Event{Controller: padB.ID, Kind: gamepad.ButtonPressed, Button: gamepad.ButtonEast}
	r.src.events <- gamepad.Event{Controller: padA.ID, Kind: gamepad.ButtonPressed, Button: gamepad.ButtonSouth}
	got := r.batch(t)
	want := []mux.OutputEvent{key(gamepad.ButtonSouth, true), mux.SyncEvent()}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("batch = %v, want %v", got, want)
	}
	if st := h.Status(); st.Active != padA.ID || st.Mode != mux.Toggle {
		t.Errorf("status = %+v", st)
	}
}

func TestModeChangeWithoutEvents(t *testing.T) {
	r := newRig()
	h := r.start(t, Config{Mode: mux.Toggle})
	r.src.events <- gamepad.Event{Controller: padA.ID, Kind: gamepad.ButtonPressed, Button: gamepad.ButtonSouth}
	r.batch(t)
	if st := h.Status(); st.Active != padA.ID {
		t.Fatalf("active = %q", st.Active)
	}

	h.Settings().UpdateMode(mux.Priority)
	eventually(t, "active controller cleared", func() bool { return h.Status().Active == "" })
}

func TestGrab(t *testing.T) {
	r := newRig()
	h := r.start(t, Config{Grab: true})
	r.src.mu.Lock()
	grabbed := slices.Clone(r.src.grabbed)
	r.src.mu.Unlock()
	if !reflect.DeepEqual(grabbed, []gamepad.ControllerID{padA.ID, padB.ID}) {
		t.Errorf("grabbed = %v", grabbed)
	}
	h.Shutdown()
	r.src.mu.Lock()
	defer r.src.mu.Unlock()
	if len(r.src.grabbed) != 0 {
		t.Error("shutdown should release grabs")
	}
}

func TestRumbleFollowsTarget(t *testing.T) {
	r := newRig()
	h := r.start(t, Config{Rumble: RumblePrimary})

	r.virtual.reqs <- []ff.Request{
		{Kind: ff.RequestUpload, ID: 0, Effect: ff.NewRumble(0x8000, 0x4000, time.Second)},
		{Kind: ff.RequestPlay, ID: 0, Value: 1},
	}
	eventually(t, "primary rumble", func() bool {
		effects, playing, _ := r.rumble[padA.Path].state()
		return effects == 1 && playing == 1
	})
	if effects, _, _ := r.rumble[padB.Path].state(); effects != 0 {
		t.Error("assist is not a rumble target")
	}

	h.Settings().UpdateRumble(RumbleAssist)
	eventually(t, "assist takes over", func() bool {
		effects, playing, _ := r.rumble[padB.Path].state()
		_, stillPlaying, closed := r.rumble[padA.Path].state()
		return effects == 1 && playing == 1 && stillPlaying == 0 && closed
	})
}

func TestShutdown(t *testing.T) {
	r := newRig()
	h := r.start(t, Config{})
	h.Shutdown()
	h.Shutdown()

	if n := r.unblocks.Load(); n != 1 {
		t.Errorf("unblocked %d times, want 1", n)
	}
	if !r.writer.closed.Load() || !r.virtual.closed.Load() || !r.src.closed.Load() {
		t.Error("shutdown should close writer, virtual device and source")
	}
	if _, _, closed := r.rumble[padA.Path].state(); !closed {
		t.Error("shutdown should close rumble devices")
	}
}

func TestStatusJSON(t *testing.T) {
	r := newRig()
	h := r.start(t, Config{Mode: mux.Average, Rumble: RumbleBoth})
	b, err := json.Marshal(h.Status())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"mode":"average"`, `"rumble":"both"`, `"virtual":"/dev/input/event99"`, `"name":"Pad A"`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("status %s lacks %s", b, want)
		}
	}
}

func TestSettings(t *testing.T) {
	s := NewSettings(mux.Priority, RumblePrimary)
	ch, cancel := s.Subscribe()

	if old := s.UpdateRumble(RumbleNone); old != RumblePrimary {
		t.Errorf("old rumble = %s", old)
	}
	select {
	case <-ch:
	default:
		t.Error("expected a notification")
	}

	s.UpdateRumble(RumbleNone)
	select {
	case <-ch:
		t.Error("unchanged value should not notify")
	default:
	}

	cancel()
	s.UpdateMode(mux.Toggle)
	select {
	case <-ch:
		t.Error("cancelled subscription notified")
	default:
	}
	if s.Mode() != mux.Toggle || s.Rumble() != RumbleNone {
		t.Errorf("settings = %s %s", s.Mode(), s.Rumble())
	}
}

func TestParse(t *testing.T) {
	for _, r := range RumbleTargets() {
		got, err := ParseRumbleTarget(strings.ToUpper(r.String()))
		if err != nil || got != r {
			t.Errorf("ParseRumbleTarget(%s) = %v, %v", r, got, err)
		}
	}
	for _, s := range Spoofs() {
		got, err := ParseSpoof(s.String())
		if err != nil || got != s {
			t.Errorf("ParseSpoof(%s) = %v, %v", s, got, err)
		}
	}
	if _, err := ParseRumbleTarget("left"); err == nil {
		t.Error("expected error")
	}
}
