package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/soar/padmux/internal/config"
	"github.com/soar/padmux/internal/control"
	"github.com/soar/padmux/internal/ctl"
	"github.com/soar/padmux/internal/ff"
	"github.com/soar/padmux/internal/gamepad"
	"github.com/soar/padmux/internal/hub"
	"github.com/soar/padmux/internal/server"
	"github.com/soar/padmux/internal/session"
	"github.com/soar/padmux/internal/tray"
)

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

const usage = `usage: padmux [command] [flags]

commands:
  run     merge the configured controllers until interrupted (default)
  tray    like run, controlled from a tray icon
  list    print the available controllers
  ctl     talk to a running padmux: status | start | stop | mode NAME | rumble TARGET
`

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	args := os.Args[1:]
	cmd := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = run(args, false)
	case "tray":
		err = run(args, true)
	case "list":
		err = list(args)
	case "ctl":
		err = runCtl(args)
	case "help":
		fmt.Print(usage)
		config.Flags().PrintDefaults()
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}
}

func load(args []string) (*config.Loader, config.Config, error) {
	flags := config.Flags()
	if err := flags.Parse(args); err != nil {
		return nil, config.Config{}, err
	}
	loader, err := config.NewLoader(nil, flags)
	if err != nil {
		return nil, config.Config{}, err
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, config.Config{}, err
	}
	session.Verbose = cfg.Verbose
	return loader, cfg, nil
}

func run(args []string, withTray bool) error {
	loader, cfg, err := load(args)
	if err != nil {
		return err
	}
	scfg, err := cfg.Session()
	if err != nil {
		return err
	}
	open := func() (gamepad.Source, error) { return gamepad.Open(cfg.Source) }
	c := control.New(open, session.LinuxDeps(), scfg)
	save := func(s session.Config) {
		if err := loader.Save(cfg.WithSession(s)); err != nil {
			log.Printf("Save config: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)
	defer signal.Stop(sigCh)

	g, gctx := errgroup.WithContext(ctx)
	url := ""
	if cfg.Listen != "" {
		h := hub.NewHub()
		b := hub.NewBroadcaster(h, c)
		srv, err := server.New(h, b, c, getFrontendFS(), cfg.Listen)
		if err != nil {
			return err
		}
		url = "http://" + cfg.Listen
		g.Go(func() error { h.Run(gctx); return nil })
		g.Go(func() error { b.Run(gctx); return nil })
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
		log.Printf("Status page: %s", url)
	}

	loader.Watch(func(next config.Config) {
		if err := next.Apply(c); err != nil {
			log.Printf("Ignoring config change: %v", err)
		}
	})

	shutdownRequested := make(chan struct{})
	var t *tray.Tray
	if withTray {
		t = tray.New(c, url, save, func() { close(shutdownRequested) })
		go t.Run(tray.GetIcon())
	} else {
		if err := c.Start(); err != nil {
			cancel()
			g.Wait()
			return err
		}
		save(c.Config())
		log.Println("Press Ctrl+C to exit")
	}

	select {
	case <-sigCh:
		log.Println("Shutting down...")
	case <-shutdownRequested:
		log.Println("Shutdown requested from tray")
	case <-gctx.Done():
	}

	if c.Running() {
		if err := c.Stop(); err != nil {
			log.Printf("Stop: %v", err)
		}
	}
	if t != nil {
		t.Quit()
	}
	cancel()
	err = g.Wait()
	log.Println("padmux stopped")
	return err
}

func list(args []string) error {
	_, cfg, err := load(args)
	if err != nil {
		return err
	}
	src, err := gamepad.Open(cfg.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tID\tNAME\tVID:PID\tRUMBLE\tPATH")
	for i, info := range src.Controllers() {
		rumble := "no"
		if info.Path != "" && ff.Supported(info.Path) {
			rumble = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%04x:%04x\t%s\t%s\n", i, info.ID, info.Name, info.Vendor, info.Product, rumble, info.Path)
	}
	return w.Flush()
}

func runCtl(args []string) error {
	flags := pflag.NewFlagSet("padmux ctl", pflag.ContinueOnError)
	addr := flags.String("addr", config.Default().Listen, "address of the running padmux")
	timeout := flags.Duration("timeout", 5*time.Second, "how long to wait for the reply")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var msg hub.ClientMessage
	switch rest := flags.Args(); {
	case len(rest) == 0 || (len(rest) == 1 && rest[0] == "status"):
		msg = hub.ClientMessage{Type: hub.CmdStatus}
	case len(rest) == 1 && rest[0] == "start":
		msg = hub.ClientMessage{Type: hub.CmdStart}
	case len(rest) == 1 && rest[0] == "stop":
		msg = hub.ClientMessage{Type: hub.CmdStop}
	case len(rest) == 2 && rest[0] == "mode":
		msg = hub.ClientMessage{Type: hub.CmdSetMode, Value: rest[1]}
	case len(rest) == 2 && rest[0] == "rumble":
		msg = hub.ClientMessage{Type: hub.CmdSetRumble, Value: rest[1]}
	default:
		return fmt.Errorf("ctl: unexpected arguments %q", rest)
	}
	return ctl.Run(*addr, msg, os.Stdout, *timeout)
}
