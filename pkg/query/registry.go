package query

import (
	"regexp"
	"sync"

	"github.com/odvcencio/domquery/pkg/query/js"
)

var (
	engineNameRe   = regexp.MustCompile(`^[A-Za-z]+$`)
	enginePrefixRe = regexp.MustCompile(`(?s)^([A-Za-z]+)/(.*)$`)
)

// Registry maps engine names to adapted handlers. It is seeded with the
// built-in engines: the default CSS engine (selected by prefix
// omission, also reachable as "css"), "pierce" (shadow-DOM piercing)
// and "aria" (accessibility-tree matching). Built-ins are never
// removable or overwritable.
//
// Production code shares the process-wide Default registry; tests may
// construct isolated instances.
type Registry struct {
	mu       sync.RWMutex
	fallback *Handler
	builtins map[string]*Handler
	custom   map[string]*Handler
	order    []string
}

// NewRegistry creates a registry seeded with the built-in engines.
func NewRegistry() *Registry {
	css := Adapt(RawHandler{QueryOne: js.CSSQueryOne, QueryAll: js.CSSQueryAll})
	return &Registry{
		fallback: css,
		builtins: map[string]*Handler{
			"css":    css,
			"pierce": Adapt(RawHandler{QueryOne: js.PierceQueryOne, QueryAll: js.PierceQueryAll}),
			"aria":   Adapt(RawHandler{QueryOne: js.AriaQueryOne, QueryAll: js.AriaQueryAll}),
		},
		custom: make(map[string]*Handler),
	}
}

// Register adds a custom engine under name. It fails with an
// InvalidNameError when the name is not a run of letters, and with a
// DuplicateNameError when the name is taken by a built-in or custom
// engine. Failure leaves the registry untouched.
func (r *Registry) Register(name string, raw RawHandler) error {
	if !engineNameRe.MatchString(name) {
		return &InvalidNameError{Name: name}
	}
	// Adapt before inserting so readers never observe a torn entry.
	handler := Adapt(raw)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builtins[name]; ok {
		return &DuplicateNameError{Name: name}
	}
	if _, ok := r.custom[name]; ok {
		return &DuplicateNameError{Name: name}
	}
	r.custom[name] = handler
	r.order = append(r.order, name)
	metricEngineRegistrations.Inc()
	metricCustomEngines.Inc()
	return nil
}

// Unregister removes a custom engine. Unknown and built-in names are a
// silent no-op so teardown stays idempotent.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.custom[name]; !ok {
		return
	}
	delete(r.custom, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	metricCustomEngines.Dec()
}

// CustomNames returns the non-built-in engine names in registration
// order.
func (r *Registry) CustomNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Clear unregisters every custom engine present when the call starts.
func (r *Registry) Clear() {
	for _, name := range r.CustomNames() {
		r.Unregister(name)
	}
}

// GetHandlerAndSelector resolves a selector string to its engine and
// the selector text the engine should receive. A prefix is the longest
// leading run of letters directly followed by "/"; without one the
// default engine gets the selector unchanged, even when the text itself
// contains slashes.
func (r *Registry) GetHandlerAndSelector(selector string) (*Handler, string, error) {
	_, handler, updated, err := r.resolve(selector)
	return handler, updated, err
}

// resolve also reports the engine name for metrics and tracing.
func (r *Registry) resolve(selector string) (string, *Handler, string, error) {
	m := enginePrefixRe.FindStringSubmatch(selector)
	if m == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return "css", r.fallback, selector, nil
	}
	name, rest := m[1], m[2]

	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.builtins[name]; ok {
		return name, h, rest, nil
	}
	if h, ok := r.custom[name]; ok {
		return name, h, rest, nil
	}
	return "", nil, "", &UnknownEngineError{Engine: name}
}

// Default is the process-wide registry backing the package-level
// functions below.
var Default = NewRegistry()

// RegisterCustomQueryHandler registers a custom engine on the default
// registry.
func RegisterCustomQueryHandler(name string, raw RawHandler) error {
	return Default.Register(name, raw)
}

// UnregisterCustomQueryHandler removes a custom engine from the default
// registry; unknown and built-in names are a no-op.
func UnregisterCustomQueryHandler(name string) {
	Default.Unregister(name)
}

// CustomQueryHandlerNames lists the custom engines on the default
// registry.
func CustomQueryHandlerNames() []string {
	return Default.CustomNames()
}

// ClearCustomQueryHandlers removes every custom engine from the default
// registry.
func ClearCustomQueryHandlers() {
	Default.Clear()
}

// GetHandlerAndSelector resolves against the default registry. Intended
// for the DOM-query entry points, not for external callers.
func GetHandlerAndSelector(selector string) (*Handler, string, error) {
	return Default.GetHandlerAndSelector(selector)
}
