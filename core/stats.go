package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TimingRecorder receives one sample per timed call.
type TimingRecorder interface {
	Record(ctx context.Context, label string, elapsed time.Duration)
}

// MethodTimer is handed to an Instrumenter; proxies call Start around every
// forwarded method.
type MethodTimer struct {
	capability string
	methods    map[string]struct{}
	recorder   TimingRecorder
	now        func() time.Time
}

func NewMethodTimer(capability string, methods []string, recorder TimingRecorder) *MethodTimer {
	set := make(map[string]struct{}, len(methods))
	for _, method := range methods {
		if method = strings.TrimSpace(method); method != "" {
			set[method] = struct{}{}
		}
	}
	return &MethodTimer{
		capability: strings.TrimSpace(capability),
		methods:    set,
		recorder:   recorder,
		now:        time.Now,
	}
}

func (t *MethodTimer) Timed(method string) bool {
	if t == nil || t.recorder == nil {
		return false
	}
	_, ok := t.methods[method]
	return ok
}

// Start returns the function that stops the clock. Methods outside the timed
// set get a no-op.
func (t *MethodTimer) Start(ctx context.Context, method string) func() {
	if !t.Timed(method) {
		return func() {}
	}
	startedAt := t.now()
	label := t.capability + "." + method
	return func() {
		t.recorder.Record(ctx, label, t.now().Sub(startedAt))
	}
}

// StatsProvider wraps another provider and, when timing is enabled and a
// collector is bound, returns a proxy timing the listed methods.
type StatsProvider struct {
	capability Capability
	inner      Provider
	methods    []string
	collector  Capability
}

type StatsOption func(*StatsProvider)

func WithCollectorCapability(collector Capability) StatsOption {
	return func(p *StatsProvider) {
		if !collector.IsZero() {
			p.collector = collector
		}
	}
}

func NewStatsProvider(capability Capability, inner Provider, methods []string, opts ...StatsOption) (*StatsProvider, error) {
	if inner == nil {
		return nil, newError(ErrInvalidConfiguration, capability.Name(), "stats provider requires an inner provider", nil)
	}
	if capability.IsZero() {
		return nil, newError(ErrInvalidConfiguration, "", "stats provider requires a capability", nil)
	}
	for _, method := range methods {
		if !capability.hasMethod(method) {
			return nil, newError(
				ErrInvalidConfiguration,
				capability.Name(),
				fmt.Sprintf("capability has no method %q", method),
				nil,
			)
		}
	}
	p := &StatsProvider{
		capability: capability,
		inner:      inner,
		methods:    append([]string(nil), methods...),
		collector:  CollectorCapability,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func (p *StatsProvider) Inner() Provider {
	if p == nil {
		return nil
	}
	return p.inner
}

func (p *StatsProvider) Provide(ctx context.Context, settings Settings, injector *Injector) (any, error) {
	if p == nil || p.inner == nil {
		return nil, newError(ErrInvalidConfiguration, "", "stats provider requires an inner provider", nil)
	}
	instance, err := p.inner.Provide(ctx, settings, injector)
	if err != nil {
		return nil, err
	}
	enabled, err := settings.GetBool(SettingTimingEnabled, false)
	if err != nil {
		return nil, err
	}
	if !enabled || injector == nil || !injector.Has(p.collector) {
		return instance, nil
	}
	recorder, err := Resolve[TimingRecorder](ctx, injector, p.collector)
	if err != nil {
		return nil, err
	}
	instrument := p.capability.instrumenter()
	if instrument == nil {
		return nil, newError(ErrResolutionFailure, p.capability.Name(), "capability cannot be instrumented", nil)
	}
	proxy, err := instrument(instance, NewMethodTimer(p.capability.Name(), p.methods, recorder))
	if err != nil {
		return nil, err
	}
	return proxy, nil
}

// WrapWithStats replaces the binding of capability visible from injector
// with a StatsProvider over it. The new binding lives in injector only.
func WrapWithStats(injector *Injector, capability Capability, methods []string, opts ...StatsOption) error {
	if injector == nil {
		return newError(ErrInvalidConfiguration, capability.Name(), "injector is nil", nil)
	}
	inner, ok := injector.Provider(capability)
	if !ok {
		return newError(ErrNoProvider, capability.Name(), "", nil)
	}
	if _, wrapped := inner.(*StatsProvider); wrapped {
		return nil
	}
	stats, err := NewStatsProvider(capability, inner, methods, opts...)
	if err != nil {
		return err
	}
	return injector.BindProvider(capability, stats, Overwrite())
}
