package envrunner

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrRunnerExists    = errors.New("envrunner: runner already registered")
	ErrRunnerNil       = errors.New("envrunner: runner factory is nil")
	ErrInvalidRunnerID = errors.New("envrunner: invalid runner id")
	ErrUnknownRunner   = errors.New("envrunner: unknown runner")
)

// Factory builds an environment runner bound to one host environment.
type Factory func(args CreateArgs) (EnvRunner, error)

// Registry stores environment-runner factories by stable identifier.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	defaultID string
}

// NewRegistry creates an empty runner registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a runner factory under id.
func (r *Registry) Register(id string, factory Factory) error {
	if factory == nil {
		return ErrRunnerNil
	}
	id = strings.TrimSpace(id)
	if !isValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidRunnerID, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[id]; ok {
		return fmt.Errorf("%w: %s", ErrRunnerExists, id)
	}
	r.factories[id] = factory
	return nil
}

// Resolve returns a runner factory by id.
func (r *Registry) Resolve(id string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[id]
	return factory, ok
}

// ListIDs returns deterministic id ordering.
func (r *Registry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetDefaultRunner promotes a registered runner id to the host default.
func (r *Registry) SetDefaultRunner(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRunner, id)
	}
	r.defaultID = id
	return nil
}

// DefaultRunner returns the promoted default runner id, empty when unset.
func (r *Registry) DefaultRunner() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultID
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used by plugin registration.
func Default() *Registry {
	return defaultRegistry
}

// isValidID requires lowercase alnum ids with . - _ separators and no
// leading, trailing, or doubled separator.
func isValidID(id string) bool {
	if id == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(id); i++ {
		c := id[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if i == 0 || i == len(id)-1 {
			if isSep {
				return false
			}
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
