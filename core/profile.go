package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/goliatone/go-vcagent/core"

// Profile is one configured backend deployment and the factory for its
// sessions.
type Profile interface {
	Backend() string
	Name() string
	Context() *InjectionContext
	Session(ctx context.Context) (*Session, error)
	Transaction(ctx context.Context) (*Session, error)
	Close(ctx context.Context) error
}

// SessionBackend is the per-session half a backend plugs into a Session.
// Bind registers the session-scoped providers; Release frees whatever
// OpenSession acquired and is always called exactly once.
type SessionBackend interface {
	Bind(ctx context.Context, scope *InjectionContext) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Release(ctx context.Context) error
}

type SessionOpener interface {
	OpenSession(ctx context.Context, transactional bool) (SessionBackend, error)
	SupportsTransactions() bool
	Close(ctx context.Context) error
}

// BaseProfile implements Profile on top of a backend SessionOpener.
type BaseProfile struct {
	backend      string
	name         string
	context      *InjectionContext
	opener       SessionOpener
	logger       Logger
	metrics      MetricsRecorder
	tracer       trace.Tracer
	collector    *Collector
	instrumented []Capability

	mu     sync.RWMutex
	closed bool
}

type profileBuilder struct {
	logger         Logger
	loggerProvider LoggerProvider
	metrics        MetricsRecorder
	tracer         trace.Tracer
	factories      *FactoryRegistry
	injectorOpts   []InjectorOption
	instrumented   []Capability
	instrumentSet  bool
	bindings       []profileBinding
}

type profileBinding struct {
	capability Capability
	instance   any
}

type ProfileOption func(*profileBuilder)

func WithLogger(logger Logger) ProfileOption {
	return func(b *profileBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) ProfileOption {
	return func(b *profileBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) ProfileOption {
	return func(b *profileBuilder) {
		b.metrics = recorder
	}
}

func WithTracer(tracer trace.Tracer) ProfileOption {
	return func(b *profileBuilder) {
		b.tracer = tracer
	}
}

// WithFactories binds registry under FactoriesCapability in the profile
// context so deferred Class providers can resolve their targets.
func WithFactories(registry *FactoryRegistry) ProfileOption {
	return func(b *profileBuilder) {
		b.factories = registry
	}
}

func WithInjectorOptions(opts ...InjectorOption) ProfileOption {
	return func(b *profileBuilder) {
		b.injectorOpts = append(b.injectorOpts, opts...)
	}
}

// WithBinding binds instance under capability in the profile context, where
// every session scope inherits it.
func WithBinding(capability Capability, instance any) ProfileOption {
	return func(b *profileBuilder) {
		b.bindings = append(b.bindings, profileBinding{capability: capability, instance: instance})
	}
}

// WithInstrumentedCapabilities selects the capabilities wrapped with Stats
// providers when timing is enabled. Defaults to SessionCapabilities.
func WithInstrumentedCapabilities(capabilities ...Capability) ProfileOption {
	return func(b *profileBuilder) {
		b.instrumented = append([]Capability(nil), capabilities...)
		b.instrumentSet = true
	}
}

func NewBaseProfile(backend string, name string, opener SessionOpener, settings Settings, opts ...ProfileOption) (*BaseProfile, error) {
	backend = strings.TrimSpace(backend)
	if backend == "" {
		return nil, newError(ErrInvalidConfiguration, "", "profile backend is required", nil)
	}
	if opener == nil {
		return nil, newError(ErrInvalidConfiguration, "", "profile session opener is required", nil)
	}
	builder := profileBuilder{}
	for _, opt := range opts {
		if opt != nil {
			opt(&builder)
		}
	}
	if !builder.instrumentSet {
		builder.instrumented = SessionCapabilities()
	}
	if builder.metrics == nil {
		builder.metrics = NopMetricsRecorder{}
	}
	if builder.tracer == nil {
		builder.tracer = otel.Tracer(tracerName)
	}
	_, logger := glog.Resolve("vcagent", builder.loggerProvider, builder.logger)

	name = strings.TrimSpace(name)
	if name == "" {
		configured, err := settings.GetString(SettingWalletName, "")
		if err != nil {
			return nil, err
		}
		name = strings.TrimSpace(configured)
	}
	if name == "" {
		name = backend
	}
	settings = settings.With(SettingWalletType, backend).With(SettingWalletName, name)

	injectionContext, err := NewInjectionContext(settings, builder.injectorOpts...)
	if err != nil {
		return nil, err
	}
	profile := &BaseProfile{
		backend:      backend,
		name:         name,
		context:      injectionContext,
		opener:       opener,
		logger:       glog.Ensure(logger),
		metrics:      builder.metrics,
		tracer:       builder.tracer,
		instrumented: builder.instrumented,
	}

	injector := injectionContext.Injector()
	if err := injector.BindInstance(MetricsCapability, builder.metrics); err != nil {
		return nil, err
	}
	if builder.factories != nil {
		if err := injector.BindInstance(FactoriesCapability, builder.factories); err != nil {
			return nil, err
		}
	}
	for _, binding := range builder.bindings {
		if err := injector.BindInstance(binding.capability, binding.instance); err != nil {
			return nil, err
		}
	}
	enabled, err := settings.GetBool(SettingTimingEnabled, false)
	if err != nil {
		return nil, err
	}
	if enabled {
		collector, err := NewCollectorFromSettings(settings,
			WithCollectorMetrics(builder.metrics),
			WithCollectorLogger(profile.logger),
		)
		if err != nil {
			return nil, err
		}
		if err := injector.BindInstance(CollectorCapability, collector); err != nil {
			return nil, err
		}
		profile.collector = collector
	}
	return profile, nil
}

func (p *BaseProfile) Backend() string {
	if p == nil {
		return ""
	}
	return p.backend
}

func (p *BaseProfile) Name() string {
	if p == nil {
		return ""
	}
	return p.name
}

func (p *BaseProfile) Context() *InjectionContext {
	if p == nil {
		return nil
	}
	return p.context
}

// Collector is nil unless timing.enabled was set when the profile was built.
func (p *BaseProfile) Collector() *Collector {
	if p == nil {
		return nil
	}
	return p.collector
}

func (p *BaseProfile) SupportsTransactions() bool {
	if p == nil || p.opener == nil {
		return false
	}
	return p.opener.SupportsTransactions()
}

func (p *BaseProfile) Session(ctx context.Context) (*Session, error) {
	return p.openSession(ctx, false)
}

func (p *BaseProfile) Transaction(ctx context.Context) (*Session, error) {
	return p.openSession(ctx, true)
}

// Close releases the backend handle. Sessions still open keep running
// against whatever they already acquired; new sessions fail with ErrMisuse.
func (p *BaseProfile) Close(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return newError(ErrMisuse, "", "profile already closed", nil)
	}
	p.closed = true
	p.mu.Unlock()

	startedAt := time.Now()
	err := p.opener.Close(ctx)
	p.observeOperation(ctx, startedAt, "profile.close", err, nil)
	return err
}

func (p *BaseProfile) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

func (p *BaseProfile) openSession(ctx context.Context, transactional bool) (*Session, error) {
	if p == nil {
		return nil, newError(ErrMisuse, "", "profile is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if p.isClosed() {
		return nil, newError(ErrMisuse, "", "profile is closed", nil)
	}
	session := newSession(p, transactional && p.SupportsTransactions(), transactional)

	ctx, span := p.startSpan(ctx, "vcagent.session.setup", session)
	startedAt := time.Now()
	err := session.setup(ctx)
	endSpan(span, err)
	p.observeOperation(ctx, startedAt, "session.setup", err, session.fields())
	if err != nil {
		return nil, err
	}
	return session, nil
}

// WithTransaction runs fn inside a transaction session, committing on
// success and rolling back on error or panic.
func WithTransaction(ctx context.Context, profile Profile, fn func(ctx context.Context, session *Session) error) (err error) {
	if profile == nil {
		return newError(ErrMisuse, "", "profile is nil", nil)
	}
	if fn == nil {
		return newError(ErrMisuse, "", "transaction func is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return newError(ErrBackendTransaction, "", "transaction aborted: context cancelled", ctxErr)
	}
	session, err := profile.Transaction(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			_ = session.Rollback(ctx)
			panic(recovered)
		}
	}()
	if err := fn(ctx, session); err != nil {
		if session.State() != SessionActive {
			return err
		}
		return errors.Join(err, session.Rollback(ctx))
	}
	if session.State() != SessionActive {
		return nil
	}
	return session.Commit(ctx)
}
