package editor

import (
	"github.com/weavy/weavy/pkg/plugins"
)

// SourceCodePluginName is the registry name of the source code plugin
const SourceCodePluginName = "weavy_sourcecode"

// SourceCodeButton is the name of the button and menu item the plugin adds
const SourceCodeButton = "code"

// SourceCodeMember is the host member holding the plugin's *SourceCode
const SourceCodeMember = "sourceCode"

// SourceCodePlugin edits the document as raw HTML. Its command toggles
// between the rendered surface and a source surface.
func SourceCodePlugin() plugins.Plugin[*Editor] {
	return plugins.Plugin[*Editor]{
		Name: SourceCodePluginName,
		Defaults: plugins.Options{
			"mode":          "htmlmixed",
			"indent_unit":   2,
			"tab_size":      2,
			"line_numbers":  true,
			"line_wrapping": true,
		},
		Factory: newSourceCode,
	}
}

// SourceCode is the per-editor state of the source code plugin
type SourceCode struct {
	editor     *Editor
	opts       plugins.Options
	source     *SourceView
	restore    map[string]bool
	restoreMnu map[string]bool
}

func newSourceCode(e *Editor, opts plugins.Options) (plugins.Members, error) {
	sc := &SourceCode{editor: e, opts: opts}
	toggle := func(*Editor) error {
		sc.Toggle()
		return nil
	}

	if err := e.UI.AddButton(Button{
		Name:     SourceCodeButton,
		Tooltip:  "Source code",
		Icon:     "sourcecode",
		OnAction: toggle,
	}); err != nil {
		return nil, err
	}
	if err := e.UI.AddMenuItem(MenuItem{
		Name:     SourceCodeButton,
		Text:     "Source code",
		Icon:     "sourcecode",
		Context:  "tools",
		OnAction: toggle,
	}); err != nil {
		return nil, err
	}

	return plugins.Members{SourceCodeMember: sc}, nil
}

// Active reports whether the editor is in source mode
func (sc *SourceCode) Active() bool {
	return sc.source != nil
}

// Source returns the open source surface, or nil outside source mode
func (sc *SourceCode) Source() *SourceView {
	return sc.source
}

// Toggle enters source mode, or submits the source and leaves it
func (sc *SourceCode) Toggle() {
	if sc.Active() {
		sc.submit()
		return
	}
	sc.open()
}

func (sc *SourceCode) open() {
	sc.source = NewSourceView(sc.editor.Content(), SourceSettings{
		Mode:         sc.opts.String("mode", "htmlmixed"),
		IndentUnit:   sc.opts.Int("indent_unit", 2),
		TabSize:      sc.opts.Int("tab_size", 2),
		LineNumbers:  sc.opts.Bool("line_numbers", true),
		LineWrapping: sc.opts.Bool("line_wrapping", true),
	})

	sc.restore = make(map[string]bool)
	for _, b := range sc.editor.UI.Buttons() {
		if b.Name == SourceCodeButton {
			b.Active = true
			continue
		}
		sc.restore[b.Name] = b.Disabled
		b.Disabled = true
	}
	sc.restoreMnu = make(map[string]bool)
	for _, m := range sc.editor.UI.MenuItems() {
		sc.restoreMnu[m.Name] = m.Disabled
		m.Disabled = true
	}

	sc.editor.SetVisible(false)
}

func (sc *SourceCode) submit() {
	modified := sc.source.IsDirty()

	sc.editor.SetContent(sc.source.Value())
	sc.editor.Fire(EventChange)

	sc.editor.SetDirty(modified)
	if modified {
		sc.editor.NodeChanged()
	}

	for _, b := range sc.editor.UI.Buttons() {
		if b.Name == SourceCodeButton {
			b.Active = false
			continue
		}
		b.Disabled = sc.restore[b.Name]
	}
	for _, m := range sc.editor.UI.MenuItems() {
		m.Disabled = sc.restoreMnu[m.Name]
	}

	sc.editor.SetVisible(true)
	sc.source = nil
	sc.restore = nil
	sc.restoreMnu = nil
}
