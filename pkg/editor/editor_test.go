package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavy/weavy/pkg/plugins"
)

type eventLog struct {
	events []string
}

func (l *eventLog) listen(e *Editor) {
	for _, name := range []string{EventChange, EventNodeChange} {
		e.On(name, func(_ *Editor, event string) {
			l.events = append(l.events, event)
		})
	}
}

func newSourceEditor(t *testing.T, content string) (*Editor, *SourceCode, *eventLog) {
	t.Helper()
	e := New(NewRegistry(), content)
	require.NoError(t, e.UI.AddButton(Button{Name: "bold", Tooltip: "Bold", OnAction: func(e *Editor) error {
		e.SetContent("<strong>" + e.Content() + "</strong>")
		return nil
	}}))
	require.NoError(t, e.UI.AddButton(Button{Name: "italic", Disabled: true}))
	require.NoError(t, e.UI.AddMenuItem(MenuItem{Name: "inserttable", Text: "Table", Context: "insert"}))
	require.NoError(t, e.Use(SourceCodePluginName, nil))

	member, ok := e.Member(SourceCodeMember)
	require.True(t, ok)
	log := &eventLog{}
	log.listen(e)
	return e, member.(*SourceCode), log
}

func TestSourceCodePlugin_RegistersUI(t *testing.T) {
	e, _, _ := newSourceEditor(t, "")

	b := e.UI.Button("code")
	require.NotNil(t, b)
	assert.Equal(t, "Source code", b.Tooltip)
	assert.Equal(t, "sourcecode", b.Icon)

	m := e.UI.MenuItem("code")
	require.NotNil(t, m)
	assert.Equal(t, "tools", m.Context)
	assert.Equal(t, "Source code", m.Text)
	assert.Equal(t, "sourcecode", m.Icon)

	assert.True(t, e.Installed("WEAVY_SOURCECODE"))
	assert.ErrorIs(t, e.Use(SourceCodePluginName, nil), plugins.ErrAlreadyInstalled)
}

func TestSourceCode_EnterDisablesOtherControls(t *testing.T) {
	e, sc, _ := newSourceEditor(t, "<p>Hello</p>")

	require.NoError(t, e.Click("code"))
	require.True(t, sc.Active())
	assert.Equal(t, "<p>Hello</p>", sc.Source().Value())
	assert.False(t, e.Visible())

	assert.True(t, e.UI.Button("code").Active)
	assert.False(t, e.UI.Button("code").Disabled)
	assert.True(t, e.UI.Button("bold").Disabled)
	assert.True(t, e.UI.MenuItem("inserttable").Disabled)
	assert.True(t, e.UI.MenuItem("code").Disabled)

	require.NoError(t, e.Click("bold"))
	assert.Equal(t, "<p>Hello</p>", e.Content(), "disabled button swallows its action")
	require.NoError(t, e.Select("code"))
	assert.True(t, sc.Active(), "disabled menu item swallows its action")
}

func TestSourceCode_SubmitModifiedMarksDirty(t *testing.T) {
	e, sc, log := newSourceEditor(t, "<p>Hello</p>")
	require.False(t, e.IsDirty())

	require.NoError(t, e.Click("code"))
	sc.Source().SetValue("<p>Hello, world</p>")
	require.NoError(t, e.Click("code"))

	assert.False(t, sc.Active())
	assert.Nil(t, sc.Source())
	assert.True(t, e.IsDirty())
	assert.Equal(t, "<p>Hello, world</p>", e.Content())
	assert.Equal(t, []string{EventChange, EventNodeChange}, log.events)
	assert.True(t, e.Visible())
}

func TestSourceCode_SubmitUnmodifiedIsNotDirty(t *testing.T) {
	e, sc, log := newSourceEditor(t, "<div>\n<p>Hello</p>\n</div>")

	require.NoError(t, e.Click("code"))
	require.NoError(t, e.Click("code"))

	assert.False(t, sc.Active())
	assert.False(t, e.IsDirty())
	assert.Equal(t, "<div>\n  <p>Hello</p>\n</div>", e.Content())
	assert.Equal(t, []string{EventChange}, log.events, "no nodechange without edits")
}

func TestSourceCode_EditRevertedIsNotDirty(t *testing.T) {
	e, sc, _ := newSourceEditor(t, "<p>Hello</p>")

	require.NoError(t, e.Select("code"))
	sc.Source().SetValue("<p>changed</p>")
	sc.Source().SetValue("<p>Hello</p>")
	require.NoError(t, e.Click("code"))

	assert.False(t, e.IsDirty())
}

func TestSourceCode_ExitRestoresControls(t *testing.T) {
	e, _, _ := newSourceEditor(t, "x")

	require.NoError(t, e.Click("code"))
	require.NoError(t, e.Click("code"))

	assert.False(t, e.UI.Button("code").Active)
	assert.False(t, e.UI.Button("bold").Disabled)
	assert.True(t, e.UI.Button("italic").Disabled, "previously disabled button stays disabled")
	assert.False(t, e.UI.MenuItem("inserttable").Disabled)
	assert.False(t, e.UI.MenuItem("code").Disabled)

	require.NoError(t, e.Click("bold"))
	assert.Equal(t, "<strong>x</strong>", e.Content())
}

func TestSourceCode_IndentUnitOption(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.SetDefaults(SourceCodePluginName, plugins.Options{"indent_unit": 4}))

	e := New(reg, "<ul>\n<li>a</li>\n</ul>")
	require.NoError(t, e.Use(SourceCodePluginName, nil))
	require.NoError(t, e.Click("code"))

	member, _ := e.Member(SourceCodeMember)
	source := member.(*SourceCode).Source()
	assert.Equal(t, "<ul>\n    <li>a</li>\n</ul>", source.Value())
	assert.Equal(t, 4, source.Settings().IndentUnit)
	assert.Equal(t, "htmlmixed", source.Settings().Mode)
}

func TestEditor_UnknownControls(t *testing.T) {
	e := New(NewRegistry(), "")
	assert.Error(t, e.Click("missing"))
	assert.Error(t, e.Select("missing"))
	assert.Error(t, e.UI.AddButton(Button{}))
	assert.Error(t, e.UI.AddMenuItem(MenuItem{}))

	require.NoError(t, e.UI.AddButton(Button{Name: "b"}))
	assert.Error(t, e.UI.AddButton(Button{Name: "b"}))
}

func TestIndentHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "nested blocks",
			in:   "<div>\n<ul>\n<li>one</li>\n<li>two</li>\n</ul>\n</div>",
			want: "<div>\n  <ul>\n    <li>one</li>\n    <li>two</li>\n  </ul>\n</div>",
		},
		{
			name: "existing indentation replaced",
			in:   "<p>\n        text\n   </p>",
			want: "<p>\n  text\n</p>",
		},
		{
			name: "void and self-closing elements",
			in:   "<div>\n<br>\n<img src=\"a.png\"/>\n<hr />\n</div>",
			want: "<div>\n  <br>\n  <img src=\"a.png\"/>\n  <hr />\n</div>",
		},
		{
			name: "blank lines",
			in:   "<div>\n   \n</div>",
			want: "<div>\n\n</div>",
		},
		{
			name: "text before closing tag",
			in:   "<p>\nend</p>\n<p>next</p>",
			want: "<p>\n  end</p>\n<p>next</p>",
		},
		{
			name: "unbalanced closing tag",
			in:   "</div>\n<p>x</p>",
			want: "</div>\n<p>x</p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IndentHTML(tt.in, 2))
		})
	}
}

func TestClientPlugin(t *testing.T) {
	editors := NewRegistry()
	client := plugins.NewRegistry[*plugins.Host]("client")
	client.MustRegister(ClientPlugin(editors))

	host := plugins.NewHost()
	_, err := client.Install(host, ClientPluginName, nil)
	require.NoError(t, err)

	member, ok := host.Member(ClientPluginName)
	require.True(t, ok)
	construct := member.(Constructor)

	e, err := construct("<p>a</p>")
	require.NoError(t, err)
	assert.True(t, e.Installed(SourceCodePluginName))
	assert.NotNil(t, e.UI.Button("code"))

	_, err = client.Install(plugins.NewHost(), ClientPluginName, plugins.Options{"plugins": []any{"nope"}})
	assert.ErrorIs(t, err, plugins.ErrNotFound)
}
