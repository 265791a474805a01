package plugins

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrAlreadyRegistered is returned when a name is registered twice
	ErrAlreadyRegistered = errors.New("plugin already registered")
	// ErrNotFound is returned for names with no registered plugin
	ErrNotFound = errors.New("plugin not found")
	// ErrAlreadyInstalled is returned when a plugin is installed twice on one host
	ErrAlreadyInstalled = errors.New("plugin already installed")
	// ErrDependencyCycle is returned when dependencies refer back to a plugin being installed
	ErrDependencyCycle = errors.New("plugin dependency cycle")
)

// Options are plugin option values keyed by option name
type Options map[string]any

// Merge returns a copy of o with every value of overrides applied on top
func (o Options) Merge(overrides Options) Options {
	out := make(Options, len(o)+len(overrides))
	for k, v := range o {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Int returns the option as an int. YAML yields int and JSON yields float64;
// both are accepted.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// String returns the option as a string
func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return def
}

// Bool returns the option as a bool
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return def
}

// Strings returns the option as a string list
func (o Options) Strings(key string) []string {
	switch v := o[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

// Members are the instance-level values a plugin contributes to its host
type Members map[string]any

// Factory builds a plugin instance for host
type Factory[H any] func(host H, opts Options) (Members, error)

// Plugin is a named extension with default options and dependencies
type Plugin[H any] struct {
	Name         string
	Defaults     Options
	Dependencies []string
	Factory      Factory[H]
}

// Info describes a registered plugin
type Info struct {
	Name         string   `json:"name"`
	Defaults     Options  `json:"defaults"`
	Dependencies []string `json:"dependencies"`
}

// Target is what a registry installs plugins onto
type Target interface {
	Installed(name string) bool
	Merge(name string, members Members)
}

// Host is a plugin target keeping installed plugins and their merged members.
// Embed it in a host type to make that type a Target.
type Host struct {
	mu        sync.RWMutex
	members   Members
	installed []string
}

// NewHost creates an empty host
func NewHost() *Host {
	return &Host{members: make(Members)}
}

// Installed reports whether the plugin was installed on the host
func (h *Host) Installed(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	name = normalize(name)
	for _, n := range h.installed {
		if n == name {
			return true
		}
	}
	return false
}

// Merge records the plugin as installed and copies its members onto the
// host. A later member replaces an earlier one with the same name.
func (h *Host) Merge(name string, members Members) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.members == nil {
		h.members = make(Members)
	}
	for k, v := range members {
		h.members[k] = v
	}
	h.installed = append(h.installed, normalize(name))
}

// Member returns a merged member
func (h *Host) Member(name string) (any, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	v, ok := h.members[name]
	return v, ok
}

// InstalledPlugins returns plugin names in installation order
func (h *Host) InstalledPlugins() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return append([]string(nil), h.installed...)
}

// MemberNames returns the sorted names of all merged members
func (h *Host) MemberNames() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.members))
	for k := range h.members {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
