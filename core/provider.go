package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Provider produces one instance of a capability implementation.
type Provider interface {
	Provide(ctx context.Context, settings Settings, injector *Injector) (any, error)
}

type ProviderFunc func(ctx context.Context, settings Settings, injector *Injector) (any, error)

func (f ProviderFunc) Provide(ctx context.Context, settings Settings, injector *Injector) (any, error) {
	if f == nil {
		return nil, newError(ErrInvalidConfiguration, "", "provider func is nil", nil)
	}
	return f(ctx, settings, injector)
}

// InstanceProvider returns a pre-built object, either held directly or
// observed through a Handle.
type InstanceProvider struct {
	instance any
	handle   Handle
}

func NewInstanceProvider(instance any) *InstanceProvider {
	return &InstanceProvider{instance: instance}
}

func NewHandleProvider(handle Handle) *InstanceProvider {
	return &InstanceProvider{handle: handle}
}

func (p *InstanceProvider) Provide(context.Context, Settings, *Injector) (any, error) {
	if p == nil {
		return nil, newError(ErrInvalidConfiguration, "", "instance provider is nil", nil)
	}
	if p.handle != nil {
		return dereference(p.handle, "")
	}
	if p.instance == nil {
		return nil, newError(ErrResolutionFailure, "", "instance provider holds nil", nil)
	}
	return p.instance, nil
}

// ClassProvider constructs a new instance per call. The target is either a
// Factory or a key looked up in the FactoryRegistry bound under
// FactoriesCapability.
type ClassProvider struct {
	factory Factory
	key     string
	args    []any
	named   map[string]any
}

type ClassOption func(*ClassProvider)

// WithArgs appends positional arguments. Each one may be a raw value, a
// Provider that is invoked, or a Handle that is dereferenced.
func WithArgs(args ...any) ClassOption {
	return func(p *ClassProvider) {
		p.args = append(p.args, args...)
	}
}

func WithNamedArg(name string, value any) ClassOption {
	return func(p *ClassProvider) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if p.named == nil {
			p.named = map[string]any{}
		}
		p.named[name] = value
	}
}

func NewClassProvider(factory Factory, opts ...ClassOption) *ClassProvider {
	p := &ClassProvider{factory: factory}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func NewDeferredClassProvider(key string, opts ...ClassOption) *ClassProvider {
	p := &ClassProvider{key: strings.TrimSpace(key)}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *ClassProvider) Target() string {
	if p == nil {
		return ""
	}
	if p.key != "" {
		return p.key
	}
	return "<factory>"
}

func (p *ClassProvider) Provide(ctx context.Context, settings Settings, injector *Injector) (any, error) {
	if p == nil {
		return nil, newError(ErrInvalidConfiguration, "", "class provider is nil", nil)
	}
	factory, err := p.resolveTarget(ctx, injector)
	if err != nil {
		return nil, err
	}

	args := make([]any, 0, len(p.args))
	for idx, raw := range p.args {
		value, err := resolveArgument(ctx, raw, settings, injector)
		if err != nil {
			return nil, annotateArgument(err, fmt.Sprintf("argument %d of %s", idx, p.Target()))
		}
		args = append(args, value)
	}
	names := make([]string, 0, len(p.named))
	for name := range p.named {
		names = append(names, name)
	}
	sort.Strings(names)
	named := make(map[string]any, len(names))
	for _, name := range names {
		value, err := resolveArgument(ctx, p.named[name], settings, injector)
		if err != nil {
			return nil, annotateArgument(err, fmt.Sprintf("argument %q of %s", name, p.Target()))
		}
		named[name] = value
	}

	return p.construct(ctx, factory, FactoryInput{
		Settings: settings,
		Injector: injector,
		Args:     args,
		Named:    named,
	})
}

func (p *ClassProvider) resolveTarget(ctx context.Context, injector *Injector) (Factory, error) {
	if p.factory != nil {
		return p.factory, nil
	}
	if p.key == "" {
		return nil, newError(ErrInvalidConfiguration, "", "class provider has no target", nil)
	}
	if injector == nil {
		return nil, newError(ErrResolutionFailure, "", fmt.Sprintf("no injector to resolve %q", p.key), nil)
	}
	registry, err := Resolve[*FactoryRegistry](ctx, injector, FactoriesCapability)
	if err != nil {
		return nil, newError(ErrResolutionFailure, "", fmt.Sprintf("no factory registry to resolve %q", p.key), err)
	}
	factory, ok := registry.Lookup(p.key)
	if !ok {
		return nil, newError(ErrResolutionFailure, "", fmt.Sprintf("unknown factory %q", p.key), nil)
	}
	return factory, nil
}

func (p *ClassProvider) construct(ctx context.Context, factory Factory, in FactoryInput) (instance any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			instance = nil
			err = newError(ErrResolutionFailure, "", fmt.Sprintf("factory %s panicked: %v", p.Target(), recovered), nil)
		}
	}()
	instance, err = factory(ctx, in)
	if err != nil {
		return nil, newError(ErrResolutionFailure, "", fmt.Sprintf("factory %s failed", p.Target()), err)
	}
	if instance == nil {
		return nil, newError(ErrResolutionFailure, "", fmt.Sprintf("factory %s returned nil", p.Target()), nil)
	}
	return instance, nil
}

func resolveArgument(ctx context.Context, raw any, settings Settings, injector *Injector) (any, error) {
	switch typed := raw.(type) {
	case Provider:
		return typed.Provide(ctx, settings, injector)
	case Handle:
		return dereference(typed, "")
	default:
		return raw, nil
	}
}

func annotateArgument(err error, where string) error {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return newError(coreErr.Kind, coreErr.Capability, where, err)
	}
	return newError(ErrResolutionFailure, "", where, err)
}
