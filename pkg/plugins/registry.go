package plugins

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds the plugins available to one kind of host. Names are
// case-insensitive and stored lowercased.
type Registry[H Target] struct {
	kind    string
	mu      sync.RWMutex
	plugins map[string]*Plugin[H]
}

// NewRegistry creates an empty registry. kind names the host type in listings.
func NewRegistry[H Target](kind string) *Registry[H] {
	return &Registry[H]{
		kind:    kind,
		plugins: make(map[string]*Plugin[H]),
	}
}

// Kind returns the host type name given to NewRegistry
func (r *Registry[H]) Kind() string {
	return r.kind
}

// Register adds a plugin. A name that is already present is rejected with
// ErrAlreadyRegistered and the existing plugin is kept.
func (r *Registry[H]) Register(p Plugin[H]) error {
	name := normalize(p.Name)
	if name == "" {
		return fmt.Errorf("plugin name is required")
	}
	if p.Factory == nil {
		return fmt.Errorf("plugin %s: factory is required", name)
	}

	deps := make([]string, 0, len(p.Dependencies))
	for _, d := range p.Dependencies {
		d = normalize(d)
		if d == name {
			return fmt.Errorf("plugin %s depends on itself: %w", name, ErrDependencyCycle)
		}
		deps = append(deps, d)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("%s: %w", name, ErrAlreadyRegistered)
	}

	r.plugins[name] = &Plugin[H]{
		Name:         name,
		Defaults:     Options(nil).Merge(p.Defaults),
		Dependencies: deps,
		Factory:      p.Factory,
	}
	return nil
}

// MustRegister is Register for built-in plugins, panicking on error
func (r *Registry[H]) MustRegister(p Plugin[H]) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Has checks if a plugin is registered
func (r *Registry[H]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.plugins[normalize(name)]
	return ok
}

// Get returns a copy of the registered plugin
func (r *Registry[H]) Get(name string) (Plugin[H], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[normalize(name)]
	if !ok {
		return Plugin[H]{}, fmt.Errorf("%s: %w", normalize(name), ErrNotFound)
	}
	return Plugin[H]{
		Name:         p.Name,
		Defaults:     Options(nil).Merge(p.Defaults),
		Dependencies: append([]string(nil), p.Dependencies...),
		Factory:      p.Factory,
	}, nil
}

// SetDefaults merges overrides into the plugin's default options
func (r *Registry[H]) SetDefaults(name string, overrides Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.plugins[normalize(name)]
	if !ok {
		return fmt.Errorf("%s: %w", normalize(name), ErrNotFound)
	}
	p.Defaults = p.Defaults.Merge(overrides)
	return nil
}

// ApplyDefaults calls SetDefaults for every entry that names a plugin in this
// registry and returns the names it did not know.
func (r *Registry[H]) ApplyDefaults(defaults map[string]Options) []string {
	var unknown []string
	for name, opts := range defaults {
		if err := r.SetDefaults(name, opts); err != nil {
			unknown = append(unknown, normalize(name))
		}
	}
	sort.Strings(unknown)
	return unknown
}

// List describes the registered plugins sorted by name
func (r *Registry[H]) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, Info{
			Name:         p.Name,
			Defaults:     Options(nil).Merge(p.Defaults),
			Dependencies: append([]string{}, p.Dependencies...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered plugins
func (r *Registry[H]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.plugins)
}

// Install installs the named plugin on host and returns its members.
// Dependencies not yet on the host are installed first with their defaults.
// The plugin itself gets its defaults with opts applied on top.
func (r *Registry[H]) Install(host H, name string, opts Options) (Members, error) {
	name = normalize(name)
	if host.Installed(name) {
		return nil, fmt.Errorf("%s: %w", name, ErrAlreadyInstalled)
	}
	return r.install(host, name, opts, nil)
}

func (r *Registry[H]) install(host H, name string, opts Options, path []string) (Members, error) {
	for _, n := range path {
		if n == name {
			return nil, fmt.Errorf("%s -> %s: %w", strings.Join(path, " -> "), name, ErrDependencyCycle)
		}
	}

	p, err := r.Get(name)
	if err != nil {
		if len(path) > 0 {
			return nil, fmt.Errorf("dependency of %s: %w", path[len(path)-1], err)
		}
		return nil, err
	}

	path = append(path, name)
	for _, dep := range p.Dependencies {
		if host.Installed(dep) {
			continue
		}
		if _, err := r.install(host, dep, nil, path); err != nil {
			return nil, err
		}
	}

	members, err := p.Factory(host, p.Defaults.Merge(opts))
	if err != nil {
		return nil, fmt.Errorf("install plugin %s: %w", name, err)
	}
	host.Merge(name, members)
	return members, nil
}
