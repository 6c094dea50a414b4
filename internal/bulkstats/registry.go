package bulkstats

import (
	"fmt"
	"sort"
	"sync"
)

// Definition describes a registered reduction.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Arity is the number of fields the reduction expects, 0 for any.
	Arity    int    `json:"arity"`
	Defaults Params `json:"defaults,omitempty"`
	Func     Func   `json:"-"`
}

// Registry holds named reductions that statistics can be built from.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// DefaultRegistry returns a registry pre-loaded with the built-in
// reductions: mean, sum, count, std, min, max, median, percentile,
// weighted_mean and weighted_sum.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	registerBuiltins(r)
	return r
}

// Register adds a definition, replacing any existing one with the same name.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: definition has no name", ErrInvalidStatistic)
	}
	if def.Func == nil {
		return fmt.Errorf("%w: %q has no function", ErrInvalidStatistic, def.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
	return nil
}

// Get retrieves a definition by name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// List returns all definitions sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Build returns a statistic that stores reduction fn under column. The
// definition's defaults apply to keys absent from params. A nil params with
// no defaults gives the bare form.
func (r *Registry) Build(column, fn string, params Params) (Statistic, error) {
	def, ok := r.Get(fn)
	if !ok {
		return Statistic{}, fmt.Errorf("%w: unknown function %q", ErrInvalidStatistic, fn)
	}
	if column == "" {
		column = fn
	}
	s := Statistic{Name: column, Func: def.Func, Params: params}
	if len(def.Defaults) > 0 {
		s.defaults = def.Defaults
	}
	return s, nil
}

// Arity reports the field count fn expects, 0 when unknown or variadic.
func (r *Registry) Arity(fn string) int {
	def, _ := r.Get(fn)
	return def.Arity
}
