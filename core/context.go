package core

import "context"

// InjectionContext owns one Settings and Injector pair.
type InjectionContext struct {
	settings Settings
	injector *Injector
}

// NewInjectionContext builds a root context. Type enforcement defaults to the
// injector.enforce_typing setting; explicit options win.
func NewInjectionContext(settings Settings, opts ...InjectorOption) (*InjectionContext, error) {
	enforce, err := settings.GetBool(SettingEnforceTyping, false)
	if err != nil {
		return nil, err
	}
	options := append([]InjectorOption{WithEnforceTyping(enforce)}, opts...)
	return &InjectionContext{
		settings: settings,
		injector: NewInjector(settings, options...),
	}, nil
}

func (c *InjectionContext) Settings() Settings {
	if c == nil {
		return Settings{}
	}
	return c.settings
}

func (c *InjectionContext) Injector() *Injector {
	if c == nil {
		return nil
	}
	return c.injector
}

// StartScope derives a child context. Overrides are merged on top of the
// parent settings; bindings made in the child never reach the parent.
func (c *InjectionContext) StartScope(overrides map[string]any) (*InjectionContext, error) {
	if c == nil {
		return nil, newError(ErrMisuse, "", "injection context is nil", nil)
	}
	settings := c.settings.Extend(overrides)
	child := c.injector.Child(settings)
	if _, ok := overrides[SettingEnforceTyping]; ok {
		enforce, err := settings.GetBool(SettingEnforceTyping, child.EnforcesTyping())
		if err != nil {
			return nil, err
		}
		child.setEnforceTyping(enforce)
	}
	return &InjectionContext{settings: settings, injector: child}, nil
}

func (c *InjectionContext) Inject(ctx context.Context, capability Capability) (any, error) {
	if c == nil {
		return nil, newError(ErrNoProvider, capability.Name(), "injection context is nil", nil)
	}
	return c.injector.Get(ctx, capability)
}
