package core

import (
	"fmt"
	"sync"
	"weak"
)

// Handle is a non-owning reference to an object whose lifetime is controlled
// elsewhere. Value reports false once the referent is gone.
type Handle interface {
	Value() (any, bool)
}

// WeakHandle observes a heap object through the garbage collector.
type WeakHandle[T any] struct {
	ptr weak.Pointer[T]
}

func Weak[T any](target *T) WeakHandle[T] {
	return WeakHandle[T]{ptr: weak.Make(target)}
}

func (h WeakHandle[T]) Value() (any, bool) {
	target := h.ptr.Value()
	if target == nil {
		return nil, false
	}
	return target, true
}

// RefHandle is released explicitly by the owner of the referent, e.g. when
// a profile closes the store its sessions observe.
type RefHandle struct {
	mu       sync.RWMutex
	value    any
	released bool
}

func NewHandle(value any) *RefHandle {
	return &RefHandle{value: value, released: value == nil}
}

func (h *RefHandle) Value() (any, bool) {
	if h == nil {
		return nil, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.released {
		return nil, false
	}
	return h.value, true
}

func (h *RefHandle) Alive() bool {
	_, ok := h.Value()
	return ok
}

func (h *RefHandle) Release() {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.released = true
	h.value = nil
	h.mu.Unlock()
}

func dereference(handle Handle, capability string) (any, error) {
	if handle == nil {
		return nil, newError(ErrDeadReference, capability, "handle is nil", nil)
	}
	value, ok := handle.Value()
	if !ok || value == nil {
		return nil, newError(ErrDeadReference, capability, "referent was released", nil)
	}
	return value, nil
}

// Dereference returns the live referent of handle as T, failing with
// ErrDeadReference once it was released or collected.
func Dereference[T any](handle Handle, capability Capability) (T, error) {
	var zero T
	value, err := dereference(handle, capability.Name())
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, newError(ErrTypeMismatch, capability.Name(), fmt.Sprintf("referent is %T", value), nil)
	}
	return typed, nil
}
