package memory

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/goliatone/go-vcagent/backend"
	"github.com/goliatone/go-vcagent/core"
)

const BackendName = "memory"

// Profile is a core profile over one in-memory Store.
type Profile struct {
	*core.BaseProfile
	store *Store
}

// NewProfile opens a profile over a fresh Store. The service factories are
// registered unless opts supply a registry of their own.
func NewProfile(settings core.Settings, opts ...core.ProfileOption) (*Profile, error) {
	return NewProfileWithStore(NewStore(), settings, opts...)
}

func NewProfileWithStore(store *Store, settings core.Settings, opts ...core.ProfileOption) (*Profile, error) {
	if store == nil {
		return nil, core.NewError(core.ErrInvalidConfiguration, "", "memory store is required", nil)
	}
	registry, err := backend.NewFactoryRegistry()
	if err != nil {
		return nil, err
	}
	opts = append([]core.ProfileOption{core.WithFactories(registry)}, opts...)
	base, err := core.NewBaseProfile(BackendName, "", NewOpener(store), settings, opts...)
	if err != nil {
		return nil, err
	}
	return &Profile{BaseProfile: base, store: store}, nil
}

// TestProfile returns a profile closed when the test ends.
func TestProfile(t testing.TB, opts ...core.ProfileOption) *Profile {
	t.Helper()
	profile, err := NewProfile(core.NewSettings(nil), opts...)
	if err != nil {
		t.Fatalf("memory: test profile: %v", err)
	}
	t.Cleanup(func() {
		_ = profile.Close(context.Background())
	})
	return profile
}

func (p *Profile) Store() *Store {
	if p == nil {
		return nil
	}
	return p.store
}

// Opener hands sessions a handle on the Store rather than the Store itself,
// so sessions outliving Close fail with ErrDeadReference.
type Opener struct {
	handle *core.RefHandle
}

func NewOpener(store *Store) *Opener {
	return &Opener{handle: core.NewHandle(store)}
}

func (o *Opener) OpenSession(ctx context.Context, transactional bool) (core.SessionBackend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	store, err := core.Dereference[*Store](o.handle, core.StorageCapability)
	if err != nil {
		return nil, err
	}
	session := &sessionBackend{handle: o.handle}
	if transactional {
		session.txn = store.Begin()
	}
	return session, nil
}

func (o *Opener) SupportsTransactions() bool {
	return true
}

func (o *Opener) Close(context.Context) error {
	o.handle.Release()
	return nil
}

type sessionBackend struct {
	handle   core.Handle
	txn      *Txn
	released atomic.Bool
}

func (s *sessionBackend) Bind(_ context.Context, scope *core.InjectionContext) error {
	injector := scope.Injector()
	var err error
	if s.txn != nil {
		err = injector.BindInstance(core.StorageCapability, s.txn)
	} else {
		err = injector.BindProvider(core.StorageCapability, sessionStorageProvider{handle: s.handle, released: &s.released})
	}
	if err != nil {
		return err
	}
	return backend.BindServices(scope)
}

func (s *sessionBackend) Commit(ctx context.Context) error {
	if s.txn == nil {
		return nil
	}
	return s.txn.Commit(ctx)
}

func (s *sessionBackend) Rollback(ctx context.Context) error {
	if s.txn == nil {
		return nil
	}
	return s.txn.Rollback(ctx)
}

func (s *sessionBackend) Release(context.Context) error {
	s.released.Store(true)
	s.txn = nil
	return nil
}

var (
	_ core.Profile        = (*Profile)(nil)
	_ core.SessionOpener  = (*Opener)(nil)
	_ core.SessionBackend = (*sessionBackend)(nil)
)

// sessionStorageProvider resolves the plain-session view of the Store through
// the profile handle, so a closed profile still surfaces ErrDeadReference.
type sessionStorageProvider struct {
	handle   core.Handle
	released *atomic.Bool
}

func (p sessionStorageProvider) Provide(context.Context, core.Settings, *core.Injector) (any, error) {
	store, err := core.Dereference[*Store](p.handle, core.StorageCapability)
	if err != nil {
		return nil, err
	}
	return &sessionStorage{store: store, released: p.released}, nil
}

// sessionStorage writes straight through to the Store until its session is
// released.
type sessionStorage struct {
	store    *Store
	released *atomic.Bool
}

func (s *sessionStorage) live() error {
	if s.released.Load() {
		return core.NewError(core.ErrMisuse, core.StorageCapability.Name(), "memory session already closed", nil)
	}
	return nil
}

func (s *sessionStorage) AddRecord(ctx context.Context, record core.StorageRecord) error {
	if err := s.live(); err != nil {
		return err
	}
	return s.store.AddRecord(ctx, record)
}

func (s *sessionStorage) GetRecord(ctx context.Context, recordType string, id string) (core.StorageRecord, error) {
	if err := s.live(); err != nil {
		return core.StorageRecord{}, err
	}
	return s.store.GetRecord(ctx, recordType, id)
}

func (s *sessionStorage) UpdateRecord(ctx context.Context, record core.StorageRecord) error {
	if err := s.live(); err != nil {
		return err
	}
	return s.store.UpdateRecord(ctx, record)
}

func (s *sessionStorage) DeleteRecord(ctx context.Context, recordType string, id string) error {
	if err := s.live(); err != nil {
		return err
	}
	return s.store.DeleteRecord(ctx, recordType, id)
}

func (s *sessionStorage) FindRecords(ctx context.Context, recordType string, tags map[string]string) ([]core.StorageRecord, error) {
	if err := s.live(); err != nil {
		return nil, err
	}
	return s.store.FindRecords(ctx, recordType, tags)
}

var _ core.Storage = (*sessionStorage)(nil)
