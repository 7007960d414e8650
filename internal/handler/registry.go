package handler

import (
	"fmt"
	"log"

	"github.com/bmatcuk/doublestar/v4"
)

// registration pairs a handler name with its factory, preserving the
// order handlers were registered in.
type registration struct {
	name    string
	factory Factory
}

// Registry discovers and loads handlers from a startup-time registration
// list. A broken registration is skipped with a log line; it never aborts
// startup or blocks other handlers.
type Registry struct {
	env           Env
	allowPatterns []string
	registrations []registration
	handlers      map[string]Handler
	order         []string
}

// NewRegistry creates an empty registry. allowPatterns optionally
// restricts which registered names are eligible for loading; entries are
// glob patterns ("contact_*", "**"). An empty slice allows everything.
func NewRegistry(env Env, allowPatterns []string) *Registry {
	return &Registry{
		env:           env,
		allowPatterns: allowPatterns,
		handlers:      make(map[string]Handler),
	}
}

// Register adds a handler factory under the given name. Registration
// order is preserved in Discover, LoadAll and Names.
func (r *Registry) Register(name string, factory Factory) {
	r.registrations = append(r.registrations, registration{name: name, factory: factory})
}

// Discover returns the registered names eligible for loading, in
// registration order.
func (r *Registry) Discover() []string {
	var names []string
	for _, reg := range r.registrations {
		if reg.factory == nil {
			log.Printf("registry: skipping %q: nil factory", reg.name)
			continue
		}
		if !r.allowed(reg.name) {
			continue
		}
		names = append(names, reg.name)
	}
	return names
}

// Load instantiates one handler by name, verifying it satisfies the
// contract. Factory panics are contained and reported as load errors.
func (r *Registry) Load(name string) (h Handler, err error) {
	var factory Factory
	for _, reg := range r.registrations {
		if reg.name == name {
			factory = reg.factory
			break
		}
	}
	if factory == nil {
		return nil, fmt.Errorf("handler %q is not registered", name)
	}

	defer func() {
		if rec := recover(); rec != nil {
			h, err = nil, fmt.Errorf("handler %q factory panicked: %v", name, rec)
		}
	}()

	h, err = factory(r.env)
	if err != nil {
		return nil, fmt.Errorf("constructing handler %q: %w", name, err)
	}
	if h == nil {
		return nil, fmt.Errorf("handler %q factory returned nil", name)
	}

	info := h.Info()
	if info.Name == "" || info.Command == "" {
		return nil, fmt.Errorf("handler %q has incomplete info (name=%q command=%q)", name, info.Name, info.Command)
	}
	if info.Name != name {
		return nil, fmt.Errorf("handler registered as %q reports name %q", name, info.Name)
	}

	return h, nil
}

// LoadAll loads every discovered handler. Failures are independent: one
// bad handler is logged and skipped without affecting the others.
func (r *Registry) LoadAll() map[string]Handler {
	for _, name := range r.Discover() {
		if _, ok := r.handlers[name]; ok {
			continue
		}
		h, err := r.Load(name)
		if err != nil {
			log.Printf("registry: not loading %q: %v", name, err)
			continue
		}
		r.handlers[name] = h
		r.order = append(r.order, name)
		log.Printf("registry: loaded handler %s (%s)", name, h.Info().DisplayName)
	}
	return r.handlers
}

// Get returns a loaded handler by name.
func (r *Registry) Get(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the loaded handler names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// allowed reports whether a name passes the allow patterns.
func (r *Registry) allowed(name string) bool {
	if len(r.allowPatterns) == 0 {
		return true
	}
	for _, pat := range r.allowPatterns {
		if ok, err := doublestar.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}
