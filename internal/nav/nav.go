// Package nav is the dashboard's navigation state machine: exactly one panel
// is active at a time and sidebar clicks, identified by their label, move
// between panels.
package nav

import (
	"fmt"
	"sync"
)

// Panel is one full-screen view of the dashboard.
type Panel int

const (
	Home Panel = iota
	Subscription
	Vault
	Approve
)

var panelNames = [...]string{"home", "subscription", "vault", "approve"}

// Panels returns every panel in sidebar order.
func Panels() []Panel {
	return []Panel{Home, Subscription, Vault, Approve}
}

// Valid reports whether p is one of the declared panels.
func (p Panel) Valid() bool {
	return p >= Home && p <= Approve
}

func (p Panel) String() string {
	if !p.Valid() {
		return fmt.Sprintf("panel(%d)", int(p))
	}
	return panelNames[p]
}

// ParsePanel maps a String() identifier back to a Panel.
func ParsePanel(s string) (Panel, bool) {
	for i, name := range panelNames {
		if name == s {
			return Panel(i), true
		}
	}
	return Home, false
}

// MarshalText encodes the panel identifier.
func (p Panel) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid panel %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a panel identifier.
func (p *Panel) UnmarshalText(b []byte) error {
	parsed, ok := ParsePanel(string(b))
	if !ok {
		return fmt.Errorf("unknown panel %q", string(b))
	}
	*p = parsed
	return nil
}

// Item is a sidebar entry: a panel, or the logout entry which is not a panel.
type Item struct {
	Panel  Panel
	Logout bool
}

// LogoutItem is the sidebar entry that ends the session.
var LogoutItem = Item{Logout: true}

// PanelItems returns a sidebar item per panel.
func PanelItems() []Item {
	panels := Panels()
	items := make([]Item, len(panels))
	for i, p := range panels {
		items[i] = Item{Panel: p}
	}
	return items
}

func (i Item) key() string {
	if i.Logout {
		return "nav.logout"
	}
	return "nav." + i.Panel.String()
}

// Outcome describes what a Select did.
type Outcome struct {
	// Panel is the active panel after the selection.
	Panel Panel
	// Changed is true when the active panel moved.
	Changed bool
	// Logout is true when the logout entry was selected. The machine does not
	// move; the caller ends the session.
	Logout bool
	// Known is false for a label that matches no sidebar entry.
	Known bool
}

// Machine tracks the active panel. The zero value is not usable; use NewMachine.
type Machine struct {
	mu     sync.Mutex
	active Panel
}

// NewMachine returns a machine with Home active.
func NewMachine() *Machine {
	return &Machine{active: Home}
}

// Active returns the active panel.
func (m *Machine) Active() Panel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Select handles a sidebar click by label. Unknown labels are a no-op.
func (m *Machine) Select(label string) Outcome {
	item, ok := Lookup(label)
	if !ok {
		return Outcome{Panel: m.Active()}
	}
	if item.Logout {
		return Outcome{Panel: m.Active(), Logout: true, Known: true}
	}
	return m.SelectPanel(item.Panel)
}

// SelectPanel activates p. Invalid panels are a no-op.
func (m *Machine) SelectPanel(p Panel) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !p.Valid() {
		return Outcome{Panel: m.active}
	}
	changed := m.active != p
	m.active = p
	return Outcome{Panel: p, Changed: changed, Known: true}
}
