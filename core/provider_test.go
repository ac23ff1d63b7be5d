package core

import (
	"context"
	"errors"
	"runtime"
	"testing"
)

type walletHandle struct {
	name string
	pad  [64]byte
}

func TestInstanceProvider_DeadHandleFails(t *testing.T) {
	handle := NewHandle(newMapStorage("owned-elsewhere"))
	provider := NewHandleProvider(handle)

	instance, err := provider.Provide(context.Background(), Settings{}, nil)
	if err != nil || instance == nil {
		t.Fatalf("expected live handle to provide, got %v err=%v", instance, err)
	}

	handle.Release()
	instance, err = provider.Provide(context.Background(), Settings{}, nil)
	assertKind(t, err, ErrDeadReference)
	if instance != nil {
		t.Fatalf("expected no instance from dead handle, got %v", instance)
	}
}

func TestInstanceProvider_WeakHandleObservesCollection(t *testing.T) {
	target := &walletHandle{name: "weak"}
	handle := Weak(target)
	if value, ok := handle.Value(); !ok || value.(*walletHandle).name != "weak" {
		t.Fatalf("expected live weak handle")
	}
	runtime.KeepAlive(target)
	target = nil

	for range 10 {
		runtime.GC()
		if _, ok := handle.Value(); !ok {
			break
		}
	}
	if _, ok := handle.Value(); ok {
		t.Skip("referent not collected yet")
	}
	_, err := NewHandleProvider(handle).Provide(context.Background(), Settings{}, nil)
	assertKind(t, err, ErrDeadReference)
}

func TestClassProvider_DeadHandleArgumentFailsBeforeConstruction(t *testing.T) {
	for _, tc := range []struct {
		name string
		opt  func(Handle) ClassOption
	}{
		{name: "positional", opt: func(h Handle) ClassOption { return WithArgs(h) }},
		{name: "named", opt: func(h Handle) ClassOption { return WithNamedArg("wallet", h) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			handle := NewHandle(&walletHandle{name: "w"})
			calls := 0
			provider := NewClassProvider(func(context.Context, FactoryInput) (any, error) {
				calls++
				return newMapStorage("built"), nil
			}, tc.opt(handle))

			handle.Release()
			_, err := provider.Provide(context.Background(), Settings{}, NewInjector(Settings{}))
			assertKind(t, err, ErrDeadReference)
			if calls != 0 {
				t.Fatalf("expected factory not to run, ran %d times", calls)
			}
		})
	}
}

func TestClassProvider_ResolvesArgumentsBeforeConstruction(t *testing.T) {
	handle := NewHandle(&walletHandle{name: "w1"})
	nested := NewInstanceProvider("nested-value")
	var got FactoryInput
	provider := NewClassProvider(func(_ context.Context, in FactoryInput) (any, error) {
		got = in
		return newMapStorage("built"), nil
	}, WithArgs("raw", nested, handle), WithNamedArg("label", nested))

	settings := NewSettings(map[string]any{"k": "v"})
	instance, err := provider.Provide(context.Background(), settings, NewInjector(settings))
	if err != nil {
		t.Fatalf("provide: %v", err)
	}
	if instance.(*mapStorage).label != "built" {
		t.Fatalf("unexpected instance %v", instance)
	}
	if got.Args[0] != "raw" || got.Args[1] != "nested-value" {
		t.Fatalf("unexpected resolved args %#v", got.Args)
	}
	wallet, err := ArgAs[*walletHandle](got, 2)
	if err != nil || wallet.name != "w1" {
		t.Fatalf("expected dereferenced handle, got %v err=%v", wallet, err)
	}
	label, err := NamedAs[string](got, "label")
	if err != nil || label != "nested-value" {
		t.Fatalf("expected nested provider in named arg, got %q err=%v", label, err)
	}
	if value, _ := got.Settings.Get("k"); value != "v" {
		t.Fatalf("expected settings to reach the factory")
	}
	if _, err := ArgAs[int](got, 0); err == nil {
		t.Fatalf("expected ArgAs type mismatch")
	}

	first, _ := provider.Provide(context.Background(), settings, NewInjector(settings))
	if first == instance {
		t.Fatalf("expected a fresh instance per provide")
	}
}

func TestClassProvider_DeferredKeyLookup(t *testing.T) {
	registry := NewFactoryRegistry()
	lookups := 0
	if err := registry.Register("memory.Storage", func(context.Context, FactoryInput) (any, error) {
		lookups++
		return newMapStorage("deferred"), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	injector := NewInjector(Settings{})
	if err := injector.BindInstance(FactoriesCapability, registry); err != nil {
		t.Fatalf("bind registry: %v", err)
	}

	if err := injector.BindProvider(StorageCapability, NewDeferredClassProvider("memory.Storage")); err != nil {
		t.Fatalf("bind provider: %v", err)
	}
	storage, err := Resolve[Storage](context.Background(), injector, StorageCapability)
	if err != nil {
		t.Fatalf("resolve deferred: %v", err)
	}
	if storage.(*mapStorage).label != "deferred" || lookups != 1 {
		t.Fatalf("expected factory to run once, ran %d", lookups)
	}

	missing := NewDeferredClassProvider("sql.Storage")
	_, err = missing.Provide(context.Background(), Settings{}, injector)
	assertKind(t, err, ErrResolutionFailure)

	_, err = NewDeferredClassProvider("memory.Storage").Provide(context.Background(), Settings{}, NewInjector(Settings{}))
	assertKind(t, err, ErrResolutionFailure)
}

func TestClassProvider_FactoryFailuresBecomeResolutionFailures(t *testing.T) {
	boom := errors.New("boom")
	cases := map[string]Factory{
		"error": func(context.Context, FactoryInput) (any, error) { return nil, boom },
		"panic": func(context.Context, FactoryInput) (any, error) { panic("constructor exploded") },
		"nil":   func(context.Context, FactoryInput) (any, error) { return nil, nil },
	}
	for name, factory := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewClassProvider(factory).Provide(context.Background(), Settings{}, nil)
			assertKind(t, err, ErrResolutionFailure)
			if name == "error" && !errors.Is(err, boom) {
				t.Fatalf("expected cause to be preserved, got %v", err)
			}
		})
	}
}

func TestFactoryRegistry_RegistrationFailuresAreDistinct(t *testing.T) {
	registry := NewFactoryRegistry()
	factory := func(context.Context, FactoryInput) (any, error) { return struct{}{}, nil }
	if err := registry.Register("b", factory); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("a", factory); err != nil {
		t.Fatalf("register: %v", err)
	}
	assertKind(t, registry.Register("a", factory), ErrFactoryRegistration)
	assertKind(t, registry.Register("  ", factory), ErrFactoryRegistration)
	assertKind(t, registry.Register("c", nil), ErrFactoryRegistration)

	keys := registry.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("unexpected keys %v", keys)
	}
}
