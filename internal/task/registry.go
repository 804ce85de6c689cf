package task

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/poi-harvester/internal/harvest"
)

// Handler executes one task for a given API and search method.
type Handler func(ctx context.Context, t Task) (*harvest.Result, error)

type handlerKey struct {
	api    string
	method string
}

// Registry maps (api, search_method) pairs to handlers.
type Registry struct {
	handlers map[handlerKey]Handler
	order    []handlerKey // insertion order for deterministic iteration
}

// NewRegistry creates an empty registry. Handlers are registered incrementally
// as search methods are added.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[handlerKey]Handler),
	}
}

// Register adds a handler for an API and search method.
func (r *Registry) Register(api, method string, h Handler) {
	key := handlerKey{api: api, method: method}
	r.handlers[key] = h
	r.order = append(r.order, key)
}

// Get returns the handler for an API and search method.
func (r *Registry) Get(api, method string) (Handler, error) {
	h, ok := r.handlers[handlerKey{api: api, method: method}]
	if !ok {
		return nil, eris.Errorf("task: unsupported search %s/%s", api, method)
	}
	return h, nil
}

// Methods returns the registered (api, search_method) pairs in registration
// order, rendered as "api/method".
func (r *Registry) Methods() []string {
	out := make([]string, len(r.order))
	for i, key := range r.order {
		out[i] = key.api + "/" + key.method
	}
	return out
}
