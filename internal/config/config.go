// Package config loads padmux settings from flags, environment and the
// config file, and persists the last used session.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/soar/padmux/internal/hide"
	"github.com/soar/padmux/internal/mux"
	"github.com/soar/padmux/internal/session"
)

const (
	envPrefix = "PADMUX"
	fileName  = "config.toml"
)

// Config is the flat settings file.
type Config struct {
	Primary string `mapstructure:"primary"`
	Assist  string `mapstructure:"assist"`
	Mode    string `mapstructure:"mode"`
	Rumble  string `mapstructure:"rumble"`
	Spoof   string `mapstructure:"spoof"`
	Hide    string `mapstructure:"hide"`
	Grab    bool   `mapstructure:"grab"`
	Source  string `mapstructure:"source"`
	Listen  string `mapstructure:"listen"`
	Verbose bool   `mapstructure:"verbose"`
}

// persisted lists the keys Save writes.
var persisted = []string{"primary", "assist", "mode", "rumble", "spoof", "hide", "grab"}

func Default() Config {
	return Config{
		Mode:   mux.Priority.String(),
		Rumble: session.RumblePrimary.String(),
		Spoof:  session.SpoofNone.String(),
		Hide:   hide.None.String(),
		Source: "evdev",
		Listen: "127.0.0.1:8765",
	}
}

// Flags returns the command-line flags that override the file.
func Flags() *pflag.FlagSet {
	d := Default()
	fs := pflag.NewFlagSet("padmux", pflag.ContinueOnError)
	fs.String("config", "", "config file (default "+DefaultPath()+")")
	fs.StringP("primary", "p", "", "primary controller: name, id, index or event path")
	fs.StringP("assist", "a", "", "assist controller: name, id, index or event path")
	fs.StringP("mode", "m", d.Mode, "arbitration mode: priority, average or toggle")
	fs.StringP("rumble", "r", d.Rumble, "rumble target: primary, assist, both or none")
	fs.String("spoof", d.Spoof, "virtual identity: none, primary or assist")
	fs.String("hide", d.Hide, "hide physical controllers: none or system")
	fs.Bool("grab", false, "grab the physical controllers exclusively")
	fs.String("source", d.Source, "input source backend")
	fs.String("listen", d.Listen, "status page address, empty to disable")
	fs.BoolP("verbose", "v", false, "log every event")
	return fs
}

// DefaultPath is $XDG_CONFIG_HOME/padmux/config.toml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "padmux", fileName)
}

// Loader reads the layered configuration. Flags win over the environment,
// which wins over the file.
type Loader struct {
	v    *viper.Viper
	fs   afero.Fs
	path string
}

// NewLoader binds flags and reads the config file if it exists. A nil fs
// means the real filesystem.
func NewLoader(fs afero.Fs, flags *pflag.FlagSet) (*Loader, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	v := viper.New()
	v.SetFs(fs)
	d := Default()
	for key, val := range map[string]any{
		"mode": d.Mode, "rumble": d.Rumble, "spoof": d.Spoof, "hide": d.Hide,
		"source": d.Source, "listen": d.Listen, "grab": false, "verbose": false,
	} {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, err
		}
	}

	path := v.GetString("config")
	if path == "" {
		path = DefaultPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	} else {
		log.Printf("Loaded config: %s", path)
	}
	return &Loader{v: v, fs: fs, path: path}, nil
}

func (l *Loader) Path() string { return l.path }

func (l *Loader) Load() (Config, error) {
	var c Config
	if err := l.v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// Save writes the session keys of c to the config file.
func (l *Loader) Save(c Config) error {
	w := viper.New()
	w.SetFs(l.fs)
	w.SetConfigType("toml")
	values := map[string]any{
		"primary": c.Primary, "assist": c.Assist, "mode": c.Mode, "rumble": c.Rumble,
		"spoof": c.Spoof, "hide": c.Hide, "grab": c.Grab,
	}
	for _, key := range persisted {
		w.Set(key, values[key])
	}
	if err := l.fs.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := w.WriteConfigAs(l.path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// Watch calls onChange with the new configuration whenever the file is
// written. It only works on the real filesystem.
func (l *Loader) Watch(onChange func(Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) { l.changed(e, onChange) })
	l.v.WatchConfig()
}

func (l *Loader) changed(e fsnotify.Event, onChange func(Config)) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	c, err := l.Load()
	if err != nil {
		log.Printf("Ignoring config change: %v", err)
		return
	}
	log.Printf("Config changed: %s", e.Name)
	onChange(c)
}

// Session converts the session keys.
func (c Config) Session() (session.Config, error) {
	mode, err := mux.ParseMode(c.Mode)
	if err != nil {
		return session.Config{}, err
	}
	rumble, err := session.ParseRumbleTarget(c.Rumble)
	if err != nil {
		return session.Config{}, err
	}
	spoof, err := session.ParseSpoof(c.Spoof)
	if err != nil {
		return session.Config{}, err
	}
	hideType, err := hide.ParseType(c.Hide)
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		Primary: c.Primary,
		Assist:  c.Assist,
		Mode:    mode,
		Rumble:  rumble,
		Spoof:   spoof,
		Hide:    hideType,
		Grab:    c.Grab,
	}, nil
}

// WithSession returns c with the session keys taken from s.
func (c Config) WithSession(s session.Config) Config {
	c.Primary, c.Assist = s.Primary, s.Assist
	c.Mode, c.Rumble, c.Spoof = s.Mode.String(), s.Rumble.String(), s.Spoof.String()
	c.Hide, c.Grab = s.Hide.String(), s.Grab
	return c
}

// Live is what a running front-end lets Apply change without a restart.
type Live interface {
	SetMode(mux.Mode)
	SetRumble(session.RumbleTarget)
}

// Apply pushes the live settings of c. Keys that need a restart are
// ignored.
func (c Config) Apply(l Live) error {
	mode, err := mux.ParseMode(c.Mode)
	if err != nil {
		return err
	}
	rumble, err := session.ParseRumbleTarget(c.Rumble)
	if err != nil {
		return err
	}
	l.SetMode(mode)
	l.SetRumble(rumble)
	return nil
}
