package server

import (
	"fmt"

	"github.com/soar/padmux/internal/control"
	"github.com/soar/padmux/internal/hub"
	"github.com/soar/padmux/internal/mux"
	"github.com/soar/padmux/internal/session"
)

// commander executes client commands against the controller.
type commander struct {
	ctl *control.Controller
}

func (c commander) Execute(cmd hub.ClientMessage) error {
	switch cmd.Type {
	case hub.CmdStatus:
		return nil
	case hub.CmdSetMode:
		m, err := mux.ParseMode(cmd.Value)
		if err != nil {
			return err
		}
		c.ctl.SetMode(m)
		return nil
	case hub.CmdSetRumble:
		r, err := session.ParseRumbleTarget(cmd.Value)
		if err != nil {
			return err
		}
		c.ctl.SetRumble(r)
		return nil
	case hub.CmdStart:
		return c.ctl.Start()
	case hub.CmdStop:
		return c.ctl.Stop()
	}
	return fmt.Errorf("unknown command %q", cmd.Type)
}
