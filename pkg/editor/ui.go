package editor

import (
	"fmt"
	"sort"
)

// Action runs when a button or menu item is invoked
type Action func(e *Editor) error

// Button is a toolbar button
type Button struct {
	Name     string
	Tooltip  string
	Icon     string
	OnAction Action

	Disabled bool
	// Active marks a toggle button that is switched on
	Active bool
}

// MenuItem is an entry in one of the editor menus
type MenuItem struct {
	Name     string
	Text     string
	Icon     string
	Context  string
	OnAction Action

	Disabled bool
}

// UI is the editor's registry of toolbar buttons and menu items
type UI struct {
	buttons   map[string]*Button
	menuItems map[string]*MenuItem
}

// NewUI creates an empty UI registry
func NewUI() *UI {
	return &UI{
		buttons:   make(map[string]*Button),
		menuItems: make(map[string]*MenuItem),
	}
}

// AddButton registers a toolbar button. Names must be unique.
func (u *UI) AddButton(b Button) error {
	if b.Name == "" {
		return fmt.Errorf("button name is required")
	}
	if _, exists := u.buttons[b.Name]; exists {
		return fmt.Errorf("button %q already registered", b.Name)
	}
	u.buttons[b.Name] = &b
	return nil
}

// AddMenuItem registers a menu item. Names must be unique.
func (u *UI) AddMenuItem(m MenuItem) error {
	if m.Name == "" {
		return fmt.Errorf("menu item name is required")
	}
	if _, exists := u.menuItems[m.Name]; exists {
		return fmt.Errorf("menu item %q already registered", m.Name)
	}
	u.menuItems[m.Name] = &m
	return nil
}

// Button returns a registered button, or nil
func (u *UI) Button(name string) *Button {
	return u.buttons[name]
}

// MenuItem returns a registered menu item, or nil
func (u *UI) MenuItem(name string) *MenuItem {
	return u.menuItems[name]
}

// Buttons returns all buttons sorted by name
func (u *UI) Buttons() []*Button {
	out := make([]*Button, 0, len(u.buttons))
	for _, b := range u.buttons {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MenuItems returns all menu items sorted by name
func (u *UI) MenuItems() []*MenuItem {
	out := make([]*MenuItem, 0, len(u.menuItems))
	for _, m := range u.menuItems {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Click invokes a toolbar button. A disabled button swallows the click.
func (e *Editor) Click(name string) error {
	b := e.UI.Button(name)
	if b == nil {
		return fmt.Errorf("no button %q", name)
	}
	if b.Disabled || b.OnAction == nil {
		return nil
	}
	return b.OnAction(e)
}

// Select invokes a menu item. A disabled item swallows the selection.
func (e *Editor) Select(name string) error {
	m := e.UI.MenuItem(name)
	if m == nil {
		return fmt.Errorf("no menu item %q", name)
	}
	if m.Disabled || m.OnAction == nil {
		return nil
	}
	return m.OnAction(e)
}
