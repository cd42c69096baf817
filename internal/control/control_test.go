package control

import (
	"errors"
	"testing"
	"time"

	"github.com/soar/padmux/internal/gamepad"
	"github.com/soar/padmux/internal/mux"
	"github.com/soar/padmux/internal/session"
	"github.com/soar/padmux/internal/session/sessiontest"
)

func newController(t *testing.T) (*Controller, *sessiontest.Env) {
	t.Helper()
	env := sessiontest.NewEnv()
	c := New(env.Open, env.Deps(), session.Config{Primary: "Pad A", Assist: "Pad B"})
	t.Cleanup(func() { c.Stop() })
	return c, env
}

func signalled(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-time.After(time.Second):
		return false
	}
}

func TestStartStop(t *testing.T) {
	c, env := newController(t)
	if err := c.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop before Start = %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(); !errors.Is(err, ErrRunning) {
		t.Errorf("second Start = %v", err)
	}
	st := c.Status()
	if !st.Running || st.Session == nil || st.Session.Primary.Name != "Pad A" {
		t.Errorf("status = %+v", st)
	}

	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	if !env.Last().Closed() {
		t.Error("stop should close the source")
	}
	if c.Status().Session != nil {
		t.Error("stopped controller reports a session")
	}
}

func TestStartFailureKeepsStopped(t *testing.T) {
	c, env := newController(t)
	c.Configure(session.Config{Primary: "Pad A", Assist: "Pad A"})
	if err := c.Start(); !errors.Is(err, session.ErrSameController) {
		t.Fatalf("err = %v", err)
	}
	if c.Running() {
		t.Error("failed start left the controller running")
	}
	if !env.Last().Closed() {
		t.Error("failed start should close the source")
	}
}

func TestSetModeLive(t *testing.T) {
	c, env := newController(t)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	ch, cancel := c.Subscribe()
	defer cancel()

	c.SetMode(mux.Toggle)
	if !signalled(ch) {
		t.Fatal("no status notification")
	}
	s, err := c.Settings()
	if err != nil {
		t.Fatal(err)
	}
	if s.Mode() != mux.Toggle {
		t.Errorf("live mode = %s", s.Mode())
	}

	env.Last().Events <- gamepad.Event{Controller: sessiontest.PadA.ID, Kind: gamepad.ButtonPressed, Button: gamepad.ButtonSouth}
	select {
	case <-env.Writer.Batches:
	case <-time.After(2 * time.Second):
		t.Fatal("no output from the running session")
	}
	if st := c.Status(); st.Session.Active != sessiontest.PadA.ID {
		t.Errorf("active = %q", st.Session.Active)
	}
}

func TestSetBeforeStart(t *testing.T) {
	c, _ := newController(t)
	c.SetRumble(session.RumbleNone)
	if _, err := c.Settings(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Settings = %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if st := c.Status(); st.Session.Rumble != session.RumbleNone {
		t.Errorf("rumble = %s", st.Session.Rumble)
	}
}

func TestControllers(t *testing.T) {
	c, env := newController(t)
	infos, err := c.Controllers()
	if err != nil || len(infos) != 2 {
		t.Fatalf("Controllers = %v, %v", infos, err)
	}
	if !env.Last().Closed() {
		t.Error("listing should close its source")
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Controllers(); !errors.Is(err, ErrRunning) {
		t.Errorf("Controllers while running = %v", err)
	}
}
