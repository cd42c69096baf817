// Package hide restricts access to the physical controllers' device nodes
// while they are merged, so games only see the virtual gamepad.
package hide

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/soar/padmux/internal/gamepad"
)

// Type selects how controllers are hidden.
type Type int

const (
	None Type = iota
	// System makes every node of a controller root-only.
	System
)

const (
	sysClassInput = "/sys/class/input"

	hiddenMode   os.FileMode = 0o600
	restoredMode os.FileMode = 0o660
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case System:
		return "system"
	}
	return fmt.Sprintf("hide(%d)", int(t))
}

// Types lists the supported hide types.
func Types() []Type { return []Type{None, System} }

func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return None, nil
	case "system":
		return System, nil
	case "steam":
		return None, errors.New("hide type steam is not supported, use system")
	}
	return None, fmt.Errorf("unknown hide type %q (want none or system)", s)
}

func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scoped hides controllers and remembers what it changed so Restore can undo
// it.
type Scoped struct {
	fs     afero.Fs
	typ    Type
	hidden []string
}

// New returns a hider working on fs. A nil fs means the real filesystem.
func New(fs afero.Fs, typ Type) *Scoped {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Scoped{fs: fs, typ: typ}
}

// Hide restricts every node belonging to the controller.
func (s *Scoped) Hide(info gamepad.Info) error {
	if s.typ == None || info.Path == "" {
		return nil
	}
	nodes, err := RelatedNodes(s.fs, info.Path)
	if err != nil {
		return fmt.Errorf("hide %s: %w", info.Name, err)
	}
	for _, node := range nodes {
		if slices.Contains(s.hidden, node) {
			continue
		}
		if err := s.fs.Chmod(node, hiddenMode); err != nil {
			log.Printf("Failed to restrict %s: %v", node, err)
			continue
		}
		s.hidden = append(s.hidden, node)
		log.Printf("Restricted: %s", node)
	}
	return nil
}

// Hidden lists the nodes currently restricted.
func (s *Scoped) Hidden() []string {
	return slices.Clone(s.hidden)
}

// Restore gives every restricted node back its group access.
func (s *Scoped) Restore() error {
	var errs []error
	for _, node := range s.hidden {
		if err := s.fs.Chmod(node, restoredMode); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", node, err))
			continue
		}
		log.Printf("Restored: %s", node)
	}
	s.hidden = nil
	return errors.Join(errs...)
}

// RelatedNodes lists the device nodes that belong to the same controller as
// an event node: sibling event and joystick nodes of the input device and
// the hidraw nodes of its HID parent.
func RelatedNodes(fs afero.Fs, eventPath string) ([]string, error) {
	name := path.Base(eventPath)
	inputDir := path.Join(sysClassInput, name, "device")
	entries, err := afero.ReadDir(fs, inputDir)
	if err != nil {
		return nil, err
	}

	nodes := []string{eventPath}
	for _, e := range entries {
		n := e.Name()
		if strings.HasPrefix(n, "event") || strings.HasPrefix(n, "js") {
			nodes = append(nodes, path.Join("/dev/input", n))
		}
	}
	if hidraw, err := afero.ReadDir(fs, path.Join(inputDir, "device", "hidraw")); err == nil {
		for _, e := range hidraw {
			if strings.HasPrefix(e.Name(), "hidraw") {
				nodes = append(nodes, path.Join("/dev", e.Name()))
			}
		}
	}

	slices.Sort(nodes)
	return slices.Compact(nodes), nil
}
