package tray

import (
	"log"
	"os/exec"
	"sync"
	"sync/atomic"

	"fyne.io/systray"

	"github.com/soar/padmux/internal/control"
	"github.com/soar/padmux/internal/gamepad"
	"github.com/soar/padmux/internal/mux"
	"github.com/soar/padmux/internal/session"
)

// ShutdownFunc is called when "Exit" is clicked
type ShutdownFunc func()

// SaveFunc persists the configuration after a successful start
type SaveFunc func(session.Config)

// maxControllers is the number of controller slots per role menu
const maxControllers = 8

// Tray manages the system tray icon and menu
type Tray struct {
	ctl          *control.Controller
	url          string
	save         SaveFunc
	shutdownFunc ShutdownFunc
	once         sync.Once
	shuttingDown atomic.Bool

	menuToggle  *systray.MenuItem
	menuPrimary *systray.MenuItem
	menuAssist  *systray.MenuItem
	menuRefresh *systray.MenuItem
	menuOpen    *systray.MenuItem
	menuExit    *systray.MenuItem
	modes       map[mux.Mode]*systray.MenuItem
	rumbles     map[session.RumbleTarget]*systray.MenuItem
	primary     []*systray.MenuItem
	assist      []*systray.MenuItem

	mu    sync.Mutex
	infos []gamepad.Info
}

// New creates a new Tray instance. url is the status page, empty when the
// server is disabled.
func New(ctl *control.Controller, url string, save SaveFunc, shutdownFn ShutdownFunc) *Tray {
	return &Tray{
		ctl:          ctl,
		url:          url,
		save:         save,
		shutdownFunc: shutdownFn,
		modes:        make(map[mux.Mode]*systray.MenuItem),
		rumbles:      make(map[session.RumbleTarget]*systray.MenuItem),
	}
}

// Run initializes and runs the system tray (blocks until Quit())
func (t *Tray) Run(iconData []byte) {
	systray.Run(func() {
		t.onReady(iconData)
	}, func() {
		t.onExit()
	})
}

// Quit removes the tray icon and makes Run return
func (t *Tray) Quit() {
	t.shuttingDown.Store(true)
	systray.Quit()
}

func (t *Tray) onReady(iconData []byte) {
	if iconData != nil {
		systray.SetIcon(iconData)
	}
	systray.SetTitle("padmux")
	systray.SetTooltip("padmux")

	t.menuToggle = systray.AddMenuItem("Start", "Start or stop merging the controllers")
	systray.AddSeparator()

	menuMode := systray.AddMenuItem("Mode", "Arbitration mode")
	for _, m := range mux.Modes() {
		item := menuMode.AddSubMenuItemCheckbox(m.String(), "", false)
		t.modes[m] = item
		t.onClick(item, func() { t.ctl.SetMode(m) })
	}
	menuRumble := systray.AddMenuItem("Rumble", "Controllers that receive rumble")
	for _, r := range session.RumbleTargets() {
		item := menuRumble.AddSubMenuItemCheckbox(r.String(), "", false)
		t.rumbles[r] = item
		t.onClick(item, func() { t.ctl.SetRumble(r) })
	}

	t.menuPrimary = systray.AddMenuItem("Primary", "Primary controller")
	t.menuAssist = systray.AddMenuItem("Assist", "Assist controller")
	for i := 0; i < maxControllers; i++ {
		p := t.menuPrimary.AddSubMenuItemCheckbox("", "", false)
		a := t.menuAssist.AddSubMenuItemCheckbox("", "", false)
		p.Hide()
		a.Hide()
		t.primary = append(t.primary, p)
		t.assist = append(t.assist, a)
		t.onClick(p, func() { t.choose(i, false) })
		t.onClick(a, func() { t.choose(i, true) })
	}
	t.menuRefresh = systray.AddMenuItem("Refresh controllers", "Look for controllers again")
	systray.AddSeparator()

	t.menuOpen = systray.AddMenuItem("Open status page", "Open web interface")
	if t.url == "" {
		t.menuOpen.Hide()
	}
	t.menuExit = systray.AddMenuItem("Exit", "Quit application")

	t.onClick(t.menuToggle, t.toggle)
	t.onClick(t.menuRefresh, t.refresh)
	t.onClick(t.menuOpen, t.openBrowser)
	go t.handleExit()

	t.refresh()
	go t.follow()

	log.Println("System tray initialized")
}

// onClick runs fn for every click on item until shutdown
func (t *Tray) onClick(item *systray.MenuItem, fn func()) {
	go func() {
		for range item.ClickedCh {
			if t.shuttingDown.Load() {
				return
			}
			fn()
		}
	}()
}

func (t *Tray) handleExit() {
	for range t.menuExit.ClickedCh {
		if t.shuttingDown.CompareAndSwap(false, true) {
			t.once.Do(t.shutdownFunc)
			systray.Quit()
			return
		}
	}
}

// follow keeps the menu in line with the controller
func (t *Tray) follow() {
	ch, cancel := t.ctl.Subscribe()
	defer cancel()
	for range ch {
		if t.shuttingDown.Load() {
			return
		}
		t.sync()
	}
}

func (t *Tray) onExit() {
	t.shuttingDown.Store(true)
	log.Println("System tray exiting")
}

func (t *Tray) toggle() {
	if t.ctl.Running() {
		if err := t.ctl.Stop(); err != nil {
			log.Printf("Stop: %v", err)
		}
		return
	}
	if err := t.ctl.Start(); err != nil {
		log.Printf("Start: %v", err)
		systray.SetTooltip("padmux: " + err.Error())
		return
	}
	if t.save != nil {
		t.save(t.ctl.Config())
	}
}

// choose selects controller slot i for the primary or assist role
func (t *Tray) choose(i int, assist bool) {
	t.mu.Lock()
	if i >= len(t.infos) {
		t.mu.Unlock()
		return
	}
	id := string(t.infos[i].ID)
	t.mu.Unlock()

	cfg := t.ctl.Config()
	if assist {
		cfg.Assist = id
	} else {
		cfg.Primary = id
	}
	t.ctl.Configure(cfg)
}

func (t *Tray) refresh() {
	infos, err := t.ctl.Controllers()
	if err != nil {
		log.Printf("List controllers: %v", err)
	} else {
		t.mu.Lock()
		t.infos = infos
		t.mu.Unlock()
	}
	t.sync()
}

func (t *Tray) sync() {
	st := t.ctl.Status()
	mode, rumble := st.Config.Mode, st.Config.Rumble
	if st.Session != nil {
		mode, rumble = st.Session.Mode, st.Session.Rumble
	}

	if st.Running {
		t.menuToggle.SetTitle("Stop")
		systray.SetTooltip("padmux: " + mode.String())
	} else {
		t.menuToggle.SetTitle("Start")
		systray.SetTooltip("padmux: stopped")
	}
	for m, item := range t.modes {
		setChecked(item, m == mode)
	}
	for r, item := range t.rumbles {
		setChecked(item, r == rumble)
	}

	t.mu.Lock()
	titles := slotTitles(t.infos, maxControllers)
	primary := selected(t.infos, st.Config.Primary)
	assist := selected(t.infos, st.Config.Assist)
	t.mu.Unlock()
	fillSlots(t.primary, titles, primary)
	fillSlots(t.assist, titles, assist)

	for _, item := range []*systray.MenuItem{t.menuPrimary, t.menuAssist, t.menuRefresh} {
		if st.Running {
			item.Disable()
		} else {
			item.Enable()
		}
	}
}

func fillSlots(items []*systray.MenuItem, titles []string, sel int) {
	for i, item := range items {
		if i >= len(titles) {
			item.Hide()
			continue
		}
		item.SetTitle(titles[i])
		setChecked(item, i == sel)
		item.Show()
	}
}

func setChecked(item *systray.MenuItem, on bool) {
	if on {
		item.Check()
	} else {
		item.Uncheck()
	}
}

// slotTitles labels at most n controllers.
func slotTitles(infos []gamepad.Info, n int) []string {
	titles := make([]string, 0, min(len(infos), n))
	for i, info := range infos {
		if i == n {
			break
		}
		titles = append(titles, info.Name+" ("+string(info.ID)+")")
	}
	return titles
}

// selected returns the index of the controller key names, or -1.
func selected(infos []gamepad.Info, key string) int {
	info, ok := gamepad.FindController(infos, key)
	if !ok {
		return -1
	}
	for i := range infos {
		if infos[i].ID == info.ID {
			return i
		}
	}
	return -1
}

// openBrowser opens the status page in the default web browser
func (t *Tray) openBrowser() {
	if t.url == "" {
		return
	}
	if err := exec.Command("xdg-open", t.url).Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}
