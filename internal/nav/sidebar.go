package nav

import "golang.org/x/text/language"

// Gate carries the external context that restricts what the sidebar shows.
type Gate struct {
	// ProtectedWallet is set when the connected wallet is the wallet being
	// protected rather than an administrator. Such a session may only approve.
	ProtectedWallet bool
}

// Entry is a rendered sidebar row.
type Entry struct {
	Item   Item
	Label  string
	Active bool
}

// Sidebar returns the entries a session may click, labelled in tag. The
// logout entry is always last.
func Sidebar(gate Gate, active Panel, tag language.Tag) []Entry {
	items := PanelItems()
	if gate.ProtectedWallet {
		items = []Item{{Panel: Approve}}
	}
	items = append(items, LogoutItem)

	entries := make([]Entry, len(items))
	for i, item := range items {
		entries[i] = Entry{
			Item:   item,
			Label:  Label(item, tag),
			Active: !item.Logout && item.Panel == active,
		}
	}
	return entries
}

// Allows reports whether the gate renders item.
func (g Gate) Allows(item Item) bool {
	if item.Logout || !g.ProtectedWallet {
		return true
	}
	return item.Panel == Approve
}
