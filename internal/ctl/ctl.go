// Package ctl sends one command to a running padmux over its websocket.
package ctl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/lxzan/gws"

	"github.com/soar/padmux/internal/control"
	"github.com/soar/padmux/internal/hub"
)

var ErrTimeout = errors.New("no reply from padmux")

type handler struct {
	gws.BuiltinEventHandler
	cmd  string
	last *control.Status
	done chan error
	once sync.Once
}

func (h *handler) finish(err error) {
	h.once.Do(func() { h.done <- err })
}

func (h *handler) OnClose(_ *gws.Conn, err error) {
	h.finish(fmt.Errorf("connection closed: %w", err))
}

func (h *handler) OnMessage(_ *gws.Conn, m *gws.Message) {
	defer m.Close()
	var msg hub.WSMessage
	if err := json.Unmarshal(m.Bytes(), &msg); err != nil {
		h.finish(fmt.Errorf("decode reply: %w", err))
		return
	}
	switch msg.Type {
	case hub.TypeStatus:
		h.last = msg.Status
	case hub.TypeResult:
		if msg.Command == h.cmd {
			h.finish(nil)
		}
	case hub.TypeError:
		if msg.Command == h.cmd {
			h.finish(errors.New(msg.Error))
		}
	}
}

// Run sends cmd to the server listening on addr and waits for its answer.
// A status command prints the current status to w as JSON.
func Run(addr string, cmd hub.ClientMessage, w io.Writer, timeout time.Duration) error {
	h := &handler{cmd: cmd.Type, done: make(chan error, 1)}
	conn, _, err := gws.NewClient(h, &gws.ClientOption{Addr: "ws://" + addr + "/ws"})
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	go conn.ReadLoop()
	defer conn.WriteClose(1000, nil)

	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(gws.OpcodeText, data); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Type, err)
	}

	select {
	case err := <-h.done:
		if err != nil {
			return fmt.Errorf("%s: %w", cmd.Type, err)
		}
	case <-time.After(timeout):
		return ErrTimeout
	}

	if cmd.Type != hub.CmdStatus {
		_, err := fmt.Fprintln(w, "ok")
		return err
	}
	if h.last == nil {
		return errors.New("server sent no status")
	}
	out, err := json.MarshalIndent(h.last, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", out)
	return err
}
