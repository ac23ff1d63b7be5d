package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Injector maps capabilities to providers. Lookups fall through to the parent
// scope; binds only ever touch the receiver.
type Injector struct {
	mu            sync.RWMutex
	parent        *Injector
	bindings      map[Capability]Provider
	settings      Settings
	enforceTyping bool
}

type InjectorOption func(*Injector)

// WithEnforceTyping checks every produced instance against the capability's
// operation set.
func WithEnforceTyping(enabled bool) InjectorOption {
	return func(i *Injector) {
		i.enforceTyping = enabled
	}
}

func NewInjector(settings Settings, opts ...InjectorOption) *Injector {
	injector := &Injector{
		bindings: make(map[Capability]Provider),
		settings: settings,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(injector)
		}
	}
	return injector
}

type bindOptions struct {
	overwrite bool
}

type BindOption func(*bindOptions)

func Overwrite() BindOption {
	return func(o *bindOptions) {
		o.overwrite = true
	}
}

// BindInstance binds an InstanceProvider over instance.
func (i *Injector) BindInstance(capability Capability, instance any, opts ...BindOption) error {
	if instance == nil {
		return newError(ErrInvalidConfiguration, capability.Name(), "instance is nil", nil)
	}
	return i.BindProvider(capability, NewInstanceProvider(instance), opts...)
}

func (i *Injector) BindProvider(capability Capability, provider Provider, opts ...BindOption) error {
	if i == nil {
		return newError(ErrInvalidConfiguration, capability.Name(), "injector is nil", nil)
	}
	if capability.IsZero() {
		return newError(ErrInvalidConfiguration, "", "capability is undefined", nil)
	}
	if provider == nil {
		return newError(ErrInvalidConfiguration, capability.Name(), "provider is nil", nil)
	}
	options := bindOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if _, exists := i.bindings[capability]; exists && !options.overwrite {
		return newError(ErrAlreadyBound, capability.Name(), "", nil)
	}
	i.bindings[capability] = provider
	return nil
}

// Get resolves capability through its provider. Providers receive the
// receiver as injector, so nested lookups see the innermost scope.
func (i *Injector) Get(ctx context.Context, capability Capability) (any, error) {
	provider, ok := i.Provider(capability)
	if !ok {
		return nil, newError(ErrNoProvider, capability.Name(), "", nil)
	}
	instance, err := provider.Provide(ctx, i.Settings(), i)
	if err != nil {
		var coreErr *Error
		if errors.As(err, &coreErr) {
			if coreErr.Capability == "" {
				return nil, newError(coreErr.Kind, capability.Name(), "", err)
			}
			return nil, err
		}
		return nil, newError(ErrResolutionFailure, capability.Name(), "", err)
	}
	if instance == nil {
		return nil, newError(ErrResolutionFailure, capability.Name(), "provider returned nil", nil)
	}
	if i.EnforcesTyping() && !capability.Accepts(instance) {
		return nil, newError(
			ErrTypeMismatch,
			capability.Name(),
			fmt.Sprintf("%T does not satisfy %s", instance, capability.Type()),
			nil,
		)
	}
	return instance, nil
}

// Provider returns the binding visible from this scope without resolving it.
func (i *Injector) Provider(capability Capability) (Provider, bool) {
	for scope := i; scope != nil; scope = scope.parent {
		scope.mu.RLock()
		provider, ok := scope.bindings[capability]
		scope.mu.RUnlock()
		if ok {
			return provider, true
		}
	}
	return nil, false
}

func (i *Injector) Has(capability Capability) bool {
	_, ok := i.Provider(capability)
	return ok
}

// Child derives a scope that inherits every binding of the receiver.
func (i *Injector) Child(settings Settings) *Injector {
	return &Injector{
		parent:        i,
		bindings:      make(map[Capability]Provider),
		settings:      settings,
		enforceTyping: i.EnforcesTyping(),
	}
}

func (i *Injector) Parent() *Injector {
	if i == nil {
		return nil
	}
	return i.parent
}

func (i *Injector) Settings() Settings {
	if i == nil {
		return Settings{}
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.settings
}

func (i *Injector) EnforcesTyping() bool {
	if i == nil {
		return false
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.enforceTyping
}

func (i *Injector) setEnforceTyping(enabled bool) {
	i.mu.Lock()
	i.enforceTyping = enabled
	i.mu.Unlock()
}

// Capabilities lists the names visible from this scope.
func (i *Injector) Capabilities() []string {
	seen := map[string]struct{}{}
	for scope := i; scope != nil; scope = scope.parent {
		scope.mu.RLock()
		for capability := range scope.bindings {
			seen[capability.Name()] = struct{}{}
		}
		scope.mu.RUnlock()
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve is Get with a typed result.
func Resolve[T any](ctx context.Context, injector *Injector, capability Capability) (T, error) {
	var zero T
	if injector == nil {
		return zero, newError(ErrNoProvider, capability.Name(), "injector is nil", nil)
	}
	instance, err := injector.Get(ctx, capability)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, newError(
			ErrTypeMismatch,
			capability.Name(),
			fmt.Sprintf("%T is not %s", instance, reflect.TypeFor[T]()),
			nil,
		)
	}
	return typed, nil
}
