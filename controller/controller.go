package controller

import (
	"fmt"
	"strings"
)

// Buttons in the order the shift register reports them.
const (
	ButtonA = iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// ButtonNames are the names used by input scripts, indexed by button.
var ButtonNames = [8]string{"A", "B", "SELECT", "START", "UP", "DOWN", "LEFT", "RIGHT"}

// Controller represents a standard NES controller.
type Controller struct {
	buttons [8]bool // live state from the host
	latched [8]bool // state captured by the last strobe
	index   byte    // the next bit to be read
	strobe  bool
}

// New creates a new Controller instance.
func New() *Controller {
	return &Controller{}
}

// SetButtons updates the state of the controller's buttons.
func (c *Controller) SetButtons(buttons [8]bool) {
	c.buttons = buttons
}

// Buttons returns the live button state.
func (c *Controller) Buttons() [8]bool {
	return c.buttons
}

// Write handles CPU writes to 0x4016. While the strobe bit is high the
// buttons are continuously reloaded into the shift register.
func (c *Controller) Write(data byte) {
	c.strobe = data&1 != 0
	if c.strobe {
		c.latched = c.buttons
		c.index = 0
	}
}

// Read handles CPU reads from the controller port and returns bit 0 of
// the result. After the eight buttons an official controller reads 1.
func (c *Controller) Read() byte {
	if c.strobe {
		c.latched = c.buttons
		c.index = 0
	}
	if c.index >= 8 {
		return 1
	}

	var value byte
	if c.latched[c.index] {
		value = 1
	}
	if !c.strobe {
		c.index++
	}
	return value
}

// State is a snapshot of the shift register.
type State struct {
	Buttons, Latched [8]bool
	Index            byte
	Strobe           bool
}

func (c *Controller) SaveState() State {
	return State{c.buttons, c.latched, c.index, c.strobe}
}

func (c *Controller) LoadState(s State) {
	c.buttons, c.latched, c.index, c.strobe = s.Buttons, s.Latched, s.Index, s.Strobe
}

// ParseButtons parses an input script token such as "A+RIGHT". NONE
// and the empty string release every button.
func ParseButtons(s string) ([8]bool, error) {
	var buttons [8]bool
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "NONE" {
		return buttons, nil
	}
	for _, name := range strings.Split(s, "+") {
		found := false
		for i, n := range ButtonNames {
			if n == name {
				buttons[i] = true
				found = true
				break
			}
		}
		if !found {
			return buttons, fmt.Errorf("unknown button %q", name)
		}
	}
	return buttons, nil
}

// FormatButtons is the inverse of ParseButtons.
func FormatButtons(buttons [8]bool) string {
	var names []string
	for i, pressed := range buttons {
		if pressed {
			names = append(names, ButtonNames[i])
		}
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "+")
}
