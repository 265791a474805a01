// Package plugins provides named, dependency-declaring extensions for host objects.
//
// A Registry is owned by one kind of host (the client widget, the editor) and
// is passed around explicitly. Plugins declare default options, the names of
// plugins they depend on, and a factory that returns the members to merge
// onto the host:
//
//	reg := plugins.NewRegistry[*plugins.Host]("client")
//	reg.MustRegister(plugins.Plugin[*plugins.Host]{
//		Name:     "preview",
//		Defaults: plugins.Options{"width": 640},
//		Factory: func(h *plugins.Host, opts plugins.Options) (plugins.Members, error) {
//			return plugins.Members{"previewWidth": opts.Int("width", 0)}, nil
//		},
//	})
//	members, err := reg.Install(host, "Preview", plugins.Options{"width": 800})
//
// Names are case-insensitive. Registering a name twice fails with
// ErrAlreadyRegistered. Install installs missing dependencies first, each
// once per host, and fails with ErrDependencyCycle when they loop.
//
// Defaults can be overridden at startup from a YAML file (LoadDefaults), and
// GET /api/plugins lists every registry.
package plugins
