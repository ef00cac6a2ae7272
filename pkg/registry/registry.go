// Package registry implements the Adapter Registry (spec.md §4.2): a
// process-wide directory of adapter factories, populated once at init and
// read-only for the lifetime of every audit.
package registry

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/auditcore/auditcore/internal/logging"
	"github.com/auditcore/auditcore/pkg/adapter"
	"github.com/auditcore/auditcore/pkg/finding"
)

// Factory constructs one Adapter instance. Adapters are registered as
// factories, not values, so construction-time side effects (e.g. opening a
// network client) happen only when something actually needs the adapter.
type Factory func() adapter.Adapter

type entry struct {
	name    string
	factory Factory
	order   int
}

// Registry is a process-wide directory of adapter factories, indexed by
// name. It is safe for concurrent registration and lookup, though in
// practice registration happens once at process startup and audits only
// read (spec.md §4.2: "not mutated during audits").
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*entry
	nextSeq int
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byName: make(map[string]*entry)}
}

// Register adds factory under name. Registration is idempotent on name:
// registering the same name twice replaces the earlier factory and logs a
// warning rather than erroring, per spec.md §4.2. The replacement keeps the
// original registration's position in list() order.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok {
		logging.For(logging.CategoryRegistry).Warn("adapter re-registered, overriding",
			zap.String("name", name))
		existing.factory = factory
		return
	}

	r.byName[name] = &entry{name: name, factory: factory, order: r.nextSeq}
	r.nextSeq++
}

// Has reports whether name has a registered factory.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// Get constructs and returns the adapter registered under name, or nil if
// none is registered.
func (r *Registry) Get(name string) adapter.Adapter {
	r.mu.RLock()
	e, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return e.factory()
}

// List returns every registered adapter, in registration order.
func (r *Registry) List() []adapter.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*entry, 0, len(r.byName))
	for _, e := range r.byName {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })

	out := make([]adapter.Adapter, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.factory())
	}
	return out
}

// Predicate selects adapters by their static metadata.
type Predicate func(finding.ToolMetadata) bool

// Select returns every registered adapter whose metadata satisfies pred, in
// registration order (spec.md §4.2: "select(predicate)").
func (r *Registry) Select(pred Predicate) []adapter.Adapter {
	out := make([]adapter.Adapter, 0)
	for _, a := range r.List() {
		if pred(a.Metadata()) {
			out = append(out, a)
		}
	}
	return out
}

// ByCategory returns every registered adapter in the given category, in
// registration order.
func (r *Registry) ByCategory(category finding.ToolCategory) []adapter.Adapter {
	return r.Select(func(m finding.ToolMetadata) bool { return m.Category == category })
}

// ByNames returns the adapters registered under names, in the order names is
// given. A name with no registration is silently skipped.
func (r *Registry) ByNames(names []string) []adapter.Adapter {
	out := make([]adapter.Adapter, 0, len(names))
	for _, n := range names {
		if a := r.Get(n); a != nil {
			out = append(out, a)
		}
	}
	return out
}
