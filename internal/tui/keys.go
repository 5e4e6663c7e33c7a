package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the meal table.
type KeyMap struct {
	// Cell movement.
	NextField     key.Binding
	PreviousField key.Binding
	Up            key.Binding // Previous row, or previous suggestion when the list is open.
	Down          key.Binding // Next row, or next suggestion when the list is open.

	// Editing.
	Accept       key.Binding // Accept a suggestion or advance to the new-meal row.
	Dismiss      key.Binding // Close suggestions, then leave the input.
	NextType     key.Binding
	PreviousType key.Binding
	Delete       key.Binding

	// Calendar.
	NextDay       key.Binding
	PreviousDay   key.Binding
	NextMonth     key.Binding // Only while no input is focused.
	PreviousMonth key.Binding // Only while no input is focused.

	Quit     key.Binding
	QuitIdle key.Binding // Only while no input is focused.
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	NextField: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("Tab", "next field"),
	),
	PreviousField: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("S-Tab", "previous field"),
	),
	Up: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "down"),
	),
	Accept: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "accept"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "dismiss"),
	),
	NextType: key.NewBinding(
		key.WithKeys("ctrl+right"),
		key.WithHelp("C-→", "next type"),
	),
	PreviousType: key.NewBinding(
		key.WithKeys("ctrl+left"),
		key.WithHelp("C-←", "previous type"),
	),
	Delete: key.NewBinding(
		key.WithKeys("ctrl+d"),
		key.WithHelp("C-d", "delete row"),
	),
	NextDay: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("PgDn", "next day"),
	),
	PreviousDay: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("PgUp", "previous day"),
	),
	NextMonth: key.NewBinding(
		key.WithKeys("]"),
		key.WithHelp("]", "next month"),
	),
	PreviousMonth: key.NewBinding(
		key.WithKeys("["),
		key.WithHelp("[", "previous month"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("C-c", "quit"),
	),
	QuitIdle: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp returns the bindings shown in the footer. It is part of the
// help.KeyMap interface.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextField, k.Accept, k.NextType, k.Delete, k.NextDay, k.Quit}
}

// FullHelp returns the bindings of the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextField, k.PreviousField, k.Up, k.Down},
		{k.Accept, k.Dismiss, k.NextType, k.PreviousType, k.Delete},
		{k.NextDay, k.PreviousDay, k.NextMonth, k.PreviousMonth},
		{k.Quit, k.QuitIdle},
	}
}
