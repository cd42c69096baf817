package mux

import (
	"fmt"
	"strings"
)

// Mode selects the arbitration policy.
type Mode int

const (
	// Priority lets the assist controller override the primary one.
	Priority Mode = iota
	// Average blends both controllers.
	Average
	// Toggle hands control to one controller at a time; the assist
	// controller's Mode button switches.
	Toggle
)

var modeNames = [...]string{
	Priority: "priority",
	Average:  "average",
	Toggle:   "toggle",
}

// Modes lists every mode in display order.
func Modes() []Mode {
	return []Mode{Priority, Average, Toggle}
}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes() {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return Priority, fmt.Errorf("unknown mode %q (want priority, average or toggle)", s)
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
