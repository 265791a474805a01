// Package editor models the rich-text editor host and its plugins.
//
// An Editor holds the document, a dirty flag, change events and a UI registry
// of toolbar buttons and menu items. Editor plugins come from a
// plugins.Registry[*Editor]; NewRegistry registers the built-in
// weavy_sourcecode plugin.
//
//	reg := editor.NewRegistry()
//	e := editor.New(reg, "<p>Hello</p>")
//	_ = e.Use(editor.SourceCodePluginName, nil)
//
//	e.Click("code")                 // enter source mode
//	sc, _ := e.Member(editor.SourceCodeMember)
//	sc.(*editor.SourceCode).Source().SetValue("<p>Bye</p>")
//	e.Click("code")                 // submit; e.IsDirty() is now true
//
// While in source mode every other button and every menu item is disabled
// and swallows its action. Submitting copies the source back, fires "change",
// and marks the editor dirty only when the source was edited.
//
// An Editor is driven from a single goroutine.
package editor
