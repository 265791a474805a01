package editor

import (
	"fmt"

	"github.com/weavy/weavy/pkg/plugins"
)

// ClientPluginName is the client widget plugin that provides editors
const ClientPluginName = "editor"

// NewRegistry returns an editor plugin registry with the built-in plugins
func NewRegistry() *plugins.Registry[*Editor] {
	reg := plugins.NewRegistry[*Editor]("editor")
	reg.MustRegister(SourceCodePlugin())
	return reg
}

// Constructor creates an editor on content with the configured plugins installed
type Constructor func(content string) (*Editor, error)

// ClientPlugin exposes editors to the client widget host. Installing it adds
// an "editor" member holding a Constructor; the "plugins" option lists the
// editor plugins every new editor gets.
func ClientPlugin(registry *plugins.Registry[*Editor]) plugins.Plugin[*plugins.Host] {
	return plugins.Plugin[*plugins.Host]{
		Name:     ClientPluginName,
		Defaults: plugins.Options{"plugins": []string{SourceCodePluginName}},
		Factory: func(_ *plugins.Host, opts plugins.Options) (plugins.Members, error) {
			names := opts.Strings("plugins")
			for _, name := range names {
				if !registry.Has(name) {
					return nil, fmt.Errorf("editor plugin %s: %w", name, plugins.ErrNotFound)
				}
			}

			var construct Constructor = func(content string) (*Editor, error) {
				e := New(registry, content)
				for _, name := range names {
					if err := e.Use(name, nil); err != nil {
						return nil, err
					}
				}
				return e, nil
			}
			return plugins.Members{ClientPluginName: construct}, nil
		},
	}
}
