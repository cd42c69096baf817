package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/soar/padmux/internal/control"
)

type fakeSource struct {
	changes chan struct{}
	status  control.Status
}

func (f *fakeSource) Status() control.Status { return f.status }
func (f *fakeSource) Subscribe() (<-chan struct{}, func()) { return f.changes, func() {} }

func runHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, cancel
}

func receive(t *testing.T, c *Client) WSMessage {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			t.Fatal("client channel closed")
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatal(err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message")
	}
	return WSMessage{}
}

func TestBroadcastOnChange(t *testing.T) {
	h, _ := runHub(t)
	c := NewClient(h, nil)
	h.Register(c)

	src := &fakeSource{changes: make(chan struct{}, 1), status: control.Status{Running: true}}
	b := NewBroadcaster(h, src)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	b.SendInitialState(c)
	first := receive(t, c)
	if first.Type != TypeStatus || first.Status == nil || !first.Status.Running {
		t.Errorf("initial = %+v", first)
	}

	src.changes <- struct{}{}
	second := receive(t, c)
	if second.Seq <= first.Seq {
		t.Errorf("seq %d after %d", second.Seq, first.Seq)
	}
}

func TestSendSkipsUnregistered(t *testing.T) {
	h, _ := runHub(t)
	c := NewClient(h, nil)
	h.Send(c, []byte("x"))
	if len(c.send) != 0 {
		t.Error("message queued for a client that never registered")
	}

	h.Register(c)
	h.Unregister(c)
	if _, ok := <-c.send; ok {
		t.Error("unregistered client channel still open")
	}
	if h.Len() != 0 {
		t.Errorf("Len = %d", h.Len())
	}
}

func TestRunStopClosesClients(t *testing.T) {
	h, cancel := runHub(t)
	c := NewClient(h, nil)
	h.Register(c)
	cancel()

	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("unexpected message")
		}
	case <-time.After(time.Second):
		t.Fatal("client not closed on stop")
	}

	late := NewClient(h, nil)
	h.Register(late)
	if _, ok := <-late.send; ok {
		t.Error("late client left open")
	}
}

func TestResultMessage(t *testing.T) {
	ok := NewResultMessage(CmdStart, nil)
	if ok.Type != TypeResult || ok.Command != CmdStart || ok.Error != "" {
		t.Errorf("ok = %+v", ok)
	}
	failed := NewResultMessage(CmdStop, control.ErrNotRunning)
	if failed.Type != TypeError || failed.Error != control.ErrNotRunning.Error() {
		t.Errorf("failed = %+v", failed)
	}
}
