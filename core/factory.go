package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// FactoryInput carries the resolved constructor arguments of a Class
// provider into its factory.
type FactoryInput struct {
	Settings Settings
	Injector *Injector
	Args     []any
	Named    map[string]any
}

type Factory func(ctx context.Context, in FactoryInput) (any, error)

func ArgAs[T any](in FactoryInput, index int) (T, error) {
	var zero T
	if index < 0 || index >= len(in.Args) {
		return zero, newError(
			ErrResolutionFailure,
			"",
			fmt.Sprintf("missing positional argument %d", index),
			nil,
		)
	}
	typed, ok := in.Args[index].(T)
	if !ok {
		return zero, newError(
			ErrTypeMismatch,
			"",
			fmt.Sprintf("positional argument %d holds %T, want %T", index, in.Args[index], zero),
			nil,
		)
	}
	return typed, nil
}

func NamedAs[T any](in FactoryInput, name string) (T, error) {
	var zero T
	value, ok := in.Named[name]
	if !ok {
		return zero, newError(
			ErrResolutionFailure,
			"",
			fmt.Sprintf("missing named argument %q", name),
			nil,
		)
	}
	typed, ok := value.(T)
	if !ok {
		return zero, newError(
			ErrTypeMismatch,
			"",
			fmt.Sprintf("named argument %q holds %T, want %T", name, value, zero),
			nil,
		)
	}
	return typed, nil
}

// FactoryRegistry resolves deferred Class provider targets by key so the
// core never imports the packages that implement them.
type FactoryRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{factories: make(map[string]Factory)}
}

func (r *FactoryRegistry) Register(key string, factory Factory) error {
	if r == nil {
		return newError(ErrFactoryRegistration, "", "registry is nil", nil)
	}
	id := strings.TrimSpace(key)
	if id == "" {
		return newError(ErrFactoryRegistration, "", "factory key is required", nil)
	}
	if factory == nil {
		return newError(ErrFactoryRegistration, "", fmt.Sprintf("factory %q is nil", id), nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[id]; exists {
		return newError(ErrFactoryRegistration, "", fmt.Sprintf("factory already registered: %s", id), nil)
	}
	r.factories[id] = factory
	return nil
}

func (r *FactoryRegistry) Lookup(key string) (Factory, bool) {
	id := strings.TrimSpace(key)
	if r == nil || id == "" {
		return nil, false
	}
	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()
	return factory, ok
}

func (r *FactoryRegistry) Keys() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	keys := make([]string, 0, len(r.factories))
	for key := range r.factories {
		keys = append(keys, key)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}
