package registry

import (
	"fmt"
	"sync"

	"github.com/arthur-debert/rollout/pkg/errors"
)

// Registry stores items by unique name and remembers the order they were
// added in.
type Registry[T any] interface {
	// Register adds an item at the end. Names must be new.
	Register(name string, item T) error

	// Set replaces a registered item in place, or appends a new one.
	Set(name string, item T) error

	// InsertAfter adds a new item right after an existing one.
	InsertAfter(after, name string, item T) error

	// Get retrieves an item by name
	Get(name string) (T, error)

	// Remove removes an item from the registry
	Remove(name string) error

	// List returns all names in registration order
	List() []string

	// Values returns all items in registration order
	Values() []T

	Has(name string) bool
	Clear()
	Count() int
}

type registry[T any] struct {
	mu    sync.RWMutex
	order []string
	items map[string]T
}

// New creates an empty Registry.
func New[T any]() Registry[T] {
	return &registry[T]{
		items: make(map[string]T),
	}
}

func (r *registry[T]) Register(name string, item T) error {
	if name == "" {
		return errors.New(errors.ErrInvalidInput, "registry name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; exists {
		return errors.Newf(errors.ErrAlreadyExists, "item '%s' is already registered", name)
	}

	r.order = append(r.order, name)
	r.items[name] = item
	return nil
}

func (r *registry[T]) Set(name string, item T) error {
	if name == "" {
		return errors.New(errors.ErrInvalidInput, "registry name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; !exists {
		r.order = append(r.order, name)
	}
	r.items[name] = item
	return nil
}

func (r *registry[T]) InsertAfter(after, name string, item T) error {
	if name == "" {
		return errors.New(errors.ErrInvalidInput, "registry name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; exists {
		return errors.Newf(errors.ErrAlreadyExists, "item '%s' is already registered", name)
	}
	at := r.index(after)
	if at < 0 {
		return errors.Newf(errors.ErrNotFound, "item '%s' not found in registry", after)
	}

	r.order = append(r.order, "")
	copy(r.order[at+2:], r.order[at+1:])
	r.order[at+1] = name
	r.items[name] = item
	return nil
}

func (r *registry[T]) Get(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.items[name]
	if !exists {
		var zero T
		return zero, errors.Newf(errors.ErrNotFound, "item '%s' not found in registry", name)
	}

	return item, nil
}

func (r *registry[T]) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := r.index(name)
	if at < 0 {
		return errors.Newf(errors.ErrNotFound, "item '%s' not found in registry", name)
	}

	r.order = append(r.order[:at], r.order[at+1:]...)
	delete(r.items, name)
	return nil
}

func (r *registry[T]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

func (r *registry[T]) Values() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.items[name])
	}
	return out
}

func (r *registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.items[name]
	return exists
}

func (r *registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = nil
	r.items = make(map[string]T)
}

func (r *registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

func (r *registry[T]) index(name string) int {
	for i, n := range r.order {
		if n == name {
			return i
		}
	}
	return -1
}

// MustRegister registers an item and panics if registration fails.
// Built-in registrations use it; a failure there is a programming error.
func MustRegister[T any](reg Registry[T], name string, item T) {
	if err := reg.Register(name, item); err != nil {
		panic(fmt.Sprintf("failed to register %s: %v", name, err))
	}
}

// MustGet retrieves an item and panics if not found
func MustGet[T any](reg Registry[T], name string) T {
	item, err := reg.Get(name)
	if err != nil {
		panic(fmt.Sprintf("failed to get %s: %v", name, err))
	}
	return item
}
