package core

import (
	"fmt"
	"reflect"
	"strings"
)

// Instrumenter builds a timing proxy for an instance of a capability. The
// proxy must forward every call unchanged and report listed methods through
// timer.
type Instrumenter func(instance any, timer *MethodTimer) (any, error)

type capabilityMeta struct {
	name       string
	typ        reflect.Type
	methods    []string
	instrument Instrumenter
}

// Capability identifies an abstract role bound in an Injector. Values are
// comparable and two capabilities are equal only when they come from the same
// DefineCapability call.
type Capability struct {
	meta *capabilityMeta
}

type CapabilityOption func(*capabilityMeta)

func WithInstrumenter(instrument Instrumenter) CapabilityOption {
	return func(meta *capabilityMeta) {
		meta.instrument = instrument
	}
}

// DefineCapability declares a role whose instances must satisfy T.
func DefineCapability[T any](name string, opts ...CapabilityOption) Capability {
	meta := &capabilityMeta{
		name: strings.TrimSpace(name),
		typ:  reflect.TypeFor[T](),
	}
	if meta.typ.Kind() == reflect.Interface {
		meta.methods = make([]string, 0, meta.typ.NumMethod())
		for i := 0; i < meta.typ.NumMethod(); i++ {
			meta.methods = append(meta.methods, meta.typ.Method(i).Name)
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(meta)
		}
	}
	return Capability{meta: meta}
}

func (c Capability) Name() string {
	if c.meta == nil {
		return ""
	}
	return c.meta.name
}

func (c Capability) Type() reflect.Type {
	if c.meta == nil {
		return nil
	}
	return c.meta.typ
}

// Methods lists the operation set of an interface capability in
// lexicographic order.
func (c Capability) Methods() []string {
	if c.meta == nil {
		return nil
	}
	return append([]string(nil), c.meta.methods...)
}

func (c Capability) IsZero() bool {
	return c.meta == nil
}

func (c Capability) String() string {
	if c.meta == nil {
		return "<undefined capability>"
	}
	return c.meta.name
}

// Accepts reports whether instance satisfies the capability's operation set.
func (c Capability) Accepts(instance any) bool {
	if c.meta == nil || instance == nil {
		return false
	}
	actual := reflect.TypeOf(instance)
	if c.meta.typ.Kind() == reflect.Interface {
		return actual.Implements(c.meta.typ)
	}
	return actual.AssignableTo(c.meta.typ)
}

func (c Capability) hasMethod(name string) bool {
	if c.meta == nil {
		return false
	}
	for _, method := range c.meta.methods {
		if method == name {
			return true
		}
	}
	return false
}

func (c Capability) instrumenter() Instrumenter {
	if c.meta == nil {
		return nil
	}
	return c.meta.instrument
}

// InstrumentWith adapts a typed proxy constructor into an Instrumenter.
func InstrumentWith[T any](wrap func(inner T, timer *MethodTimer) T) Instrumenter {
	return func(instance any, timer *MethodTimer) (any, error) {
		typed, ok := instance.(T)
		if !ok {
			return nil, newError(
				ErrTypeMismatch,
				"",
				fmt.Sprintf("cannot instrument %T as %s", instance, reflect.TypeFor[T]()),
				nil,
			)
		}
		return wrap(typed, timer), nil
	}
}
