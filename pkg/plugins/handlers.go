package plugins

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/weavy/weavy/pkg/httputil"
)

// Lister is a registry as seen by the listing endpoint
type Lister interface {
	Kind() string
	List() []Info
}

// Handlers serves the plugin listing
type Handlers struct {
	registries []Lister
}

// NewHandlers creates plugin handlers over the given registries
func NewHandlers(registries ...Lister) *Handlers {
	return &Handlers{registries: registries}
}

// RegisterRoutes registers plugin routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/plugins", h.list).Methods(http.MethodGet)
}

// list returns every registry's plugins keyed by host kind
func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	out := make(map[string][]Info, len(h.registries))
	for _, reg := range h.registries {
		out[reg.Kind()] = reg.List()
	}
	httputil.WriteSuccess(w, out)
}
