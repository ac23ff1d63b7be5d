package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type SessionState int

const (
	SessionCreated SessionState = iota
	SessionActive
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionCreated:
		return "created"
	case SessionActive:
		return "active"
	case SessionClosed:
		return "closed"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// Settings keys set on every session scope.
const (
	SettingSessionID          = "session.id"
	SettingSessionTransaction = "session.transaction"
)

// Session is one unit of work over a profile. It goes through exactly one
// setup and exactly one terminal transition.
type Session struct {
	mu            sync.Mutex
	id            string
	profile       *BaseProfile
	scope         *InjectionContext
	backend       SessionBackend
	transactional bool
	requested     bool
	state         SessionState
	openedAt      time.Time
}

func newSession(profile *BaseProfile, transactional bool, requested bool) *Session {
	return &Session{
		id:            uuid.NewString(),
		profile:       profile,
		transactional: transactional,
		requested:     requested,
		state:         SessionCreated,
	}
}

func (s *Session) setup(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionCreated {
		return newError(ErrMisuse, "", fmt.Sprintf("setup on %s session", s.state), nil)
	}
	defer func() {
		if err != nil {
			s.state = SessionClosed
			s.scope = nil
			s.backend = nil
		}
	}()

	scope, err := s.profile.context.StartScope(map[string]any{
		SettingSessionID:          s.id,
		SettingSessionTransaction: s.transactional,
	})
	if err != nil {
		return err
	}
	backend, err := s.profile.opener.OpenSession(ctx, s.transactional)
	if err != nil {
		return newError(ErrBackendTransaction, "", "open backend session", err)
	}
	if backend == nil {
		return newError(ErrResolutionFailure, "", "backend opened no session", nil)
	}

	if err := s.bind(ctx, scope, backend); err != nil {
		var teardown error
		if s.transactional {
			teardown = backend.Rollback(ctx)
		}
		return errors.Join(err, teardown, backend.Release(ctx))
	}

	s.scope = scope
	s.backend = backend
	s.state = SessionActive
	s.openedAt = time.Now()
	return nil
}

func (s *Session) bind(ctx context.Context, scope *InjectionContext, backend SessionBackend) error {
	if err := backend.Bind(ctx, scope); err != nil {
		return err
	}
	enabled, err := scope.Settings().GetBool(SettingTimingEnabled, false)
	if err != nil || !enabled {
		return err
	}
	injector := scope.Injector()
	for _, capability := range s.profile.instrumented {
		if !injector.Has(capability) {
			continue
		}
		if err := WrapWithStats(injector, capability, capability.Methods()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Profile() Profile {
	return s.profile
}

// IsTransaction reports whether commit and rollback reach the backend. A
// transaction requested on a backend without atomic support is false.
func (s *Session) IsTransaction() bool {
	return s.transactional
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Context() (*InjectionContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionActive {
		return nil, s.misuse("context")
	}
	return s.scope, nil
}

func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scope == nil {
		return Settings{}
	}
	return s.scope.Settings()
}

func (s *Session) Inject(ctx context.Context, capability Capability) (any, error) {
	scope, err := s.Context()
	if err != nil {
		return nil, err
	}
	return scope.Inject(ctx, capability)
}

// Inject resolves capability through session and asserts its type.
func Inject[T any](ctx context.Context, session *Session, capability Capability) (T, error) {
	var zero T
	if session == nil {
		return zero, newError(ErrMisuse, capability.Name(), "session is nil", nil)
	}
	scope, err := session.Context()
	if err != nil {
		return zero, err
	}
	return Resolve[T](ctx, scope.Injector(), capability)
}

func (s *Session) Commit(ctx context.Context) error {
	return s.finish(ctx, "commit")
}

func (s *Session) Rollback(ctx context.Context) error {
	return s.finish(ctx, "rollback")
}

// Close rolls back a transaction and is a no-op commit otherwise.
func (s *Session) Close(ctx context.Context) error {
	return s.finish(ctx, "close")
}

func (s *Session) finish(ctx context.Context, operation string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.state != SessionActive {
		s.mu.Unlock()
		return s.misuse(operation)
	}
	s.state = SessionClosed
	backend := s.backend
	s.backend = nil
	s.mu.Unlock()

	ctx, span := s.profile.startSpan(ctx, "vcagent.session."+operation, s)
	startedAt := time.Now()

	var err error
	if s.transactional {
		switch operation {
		case "commit":
			if commitErr := backend.Commit(ctx); commitErr != nil {
				err = newError(ErrBackendTransaction, "", "commit failed", commitErr)
			}
		default:
			if rollbackErr := backend.Rollback(ctx); rollbackErr != nil {
				err = newError(ErrBackendTransaction, "", "rollback failed", rollbackErr)
			}
		}
	}
	if releaseErr := backend.Release(ctx); releaseErr != nil {
		err = errors.Join(err, newError(ErrBackendTransaction, "", "release failed", releaseErr))
	}

	endSpan(span, err)
	fields := s.fields()
	fields["session_age_ms"] = time.Since(s.openedAt).Milliseconds()
	s.profile.observeOperation(ctx, startedAt, "session."+operation, err, fields)
	return err
}

func (s *Session) misuse(operation string) error {
	return newError(ErrMisuse, "", fmt.Sprintf("%s on %s session %s", operation, s.state, s.id), nil)
}

func (s *Session) fields() map[string]any {
	return map[string]any{
		"session_id":  s.id,
		"transaction": s.transactional,
		"requested":   s.requested,
	}
}

func (p *BaseProfile) startSpan(ctx context.Context, name string, session *Session) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("vcagent.profile", p.name),
		attribute.String("vcagent.backend", p.backend),
		attribute.String("vcagent.session_id", session.id),
		attribute.Bool("vcagent.transaction", session.transactional),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
