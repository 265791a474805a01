package editor

import (
	"sync"

	"github.com/weavy/weavy/pkg/plugins"
)

// Event names fired by the editor
const (
	EventChange     = "change"
	EventNodeChange = "nodechange"
)

// Listener receives editor events
type Listener func(e *Editor, event string)

// Editor is the host for editor plugins. It holds the document content and
// the toolbar, and is driven from a single goroutine.
type Editor struct {
	*plugins.Host

	registry *plugins.Registry[*Editor]

	content  string
	dirty    bool
	hidden   bool
	UI       *UI
	handlers map[string][]Listener

	mu sync.Mutex // guards handlers only
}

// New creates an editor with the given initial content. Plugins are installed
// from registry.
func New(registry *plugins.Registry[*Editor], content string) *Editor {
	return &Editor{
		Host:     plugins.NewHost(),
		registry: registry,
		content:  content,
		UI:       NewUI(),
		handlers: make(map[string][]Listener),
	}
}

// Use installs a plugin by name
func (e *Editor) Use(name string, opts plugins.Options) error {
	_, err := e.registry.Install(e, name, opts)
	return err
}

// Content returns the document
func (e *Editor) Content() string {
	return e.content
}

// SetContent replaces the document. It does not change the dirty flag.
func (e *Editor) SetContent(content string) {
	e.content = content
}

// IsDirty reports whether the document has unsaved changes
func (e *Editor) IsDirty() bool {
	return e.dirty
}

// SetDirty sets the dirty flag
func (e *Editor) SetDirty(dirty bool) {
	e.dirty = dirty
}

// Visible reports whether the rendered editing surface is shown
func (e *Editor) Visible() bool {
	return !e.hidden
}

// SetVisible shows or hides the rendered editing surface
func (e *Editor) SetVisible(visible bool) {
	e.hidden = !visible
}

// On subscribes to an event
func (e *Editor) On(event string, fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[event] = append(e.handlers[event], fn)
}

// Fire calls the event's listeners in subscription order
func (e *Editor) Fire(event string) {
	e.mu.Lock()
	listeners := append([]Listener(nil), e.handlers[event]...)
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(e, event)
	}
}

// NodeChanged signals that the document structure changed
func (e *Editor) NodeChanged() {
	e.Fire(EventNodeChange)
}
