package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-vcagent/backend"
	"github.com/goliatone/go-vcagent/core"
	"github.com/uptrace/bun"
)

const BackendName = "sql"

type Profile struct {
	*core.BaseProfile
	opener *Opener
}

type Option func(*Opener)

// WithCacheService enables read-through caching of GetRecord outside
// transactions.
func WithCacheService(cacheService repositorycache.CacheService) Option {
	return func(o *Opener) {
		o.cache = cacheService
	}
}

// WithTxOptions sets the isolation used for transactional sessions.
func WithTxOptions(opts *sql.TxOptions) Option {
	return func(o *Opener) {
		o.txOptions = opts
	}
}

// NewProfile opens the database described by cfg.SQL and builds a profile
// over it. Closing the profile closes the database.
func NewProfile(ctx context.Context, cfg core.SQLConfig, settings core.Settings, opts []Option, profileOpts ...core.ProfileOption) (*Profile, error) {
	client, err := OpenClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	profile, err := NewProfileFromClient(client, settings, opts, profileOpts...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return profile, nil
}

func NewProfileFromClient(client *persistence.Client, settings core.Settings, opts []Option, profileOpts ...core.ProfileOption) (*Profile, error) {
	if client == nil {
		return nil, core.NewError(core.ErrInvalidConfiguration, "", "persistence client is required", nil)
	}
	opener, err := NewOpener(client.DB(), append(opts, withCloser(client.Close))...)
	if err != nil {
		return nil, err
	}
	registry, err := backend.NewFactoryRegistry()
	if err != nil {
		return nil, err
	}
	profileOpts = append([]core.ProfileOption{core.WithFactories(registry)}, profileOpts...)
	base, err := core.NewBaseProfile(BackendName, "", opener, settings, profileOpts...)
	if err != nil {
		return nil, err
	}
	return &Profile{BaseProfile: base, opener: opener}, nil
}

// Store returns the non-transactional store shared by plain sessions.
func (p *Profile) Store() *Store {
	if p == nil || p.opener == nil {
		return nil
	}
	return p.opener.store
}

// Opener begins a bun transaction for every transactional session. Plain
// sessions share one Store over the pool.
type Opener struct {
	db        *bun.DB
	store     *Store
	cache     repositorycache.CacheService
	txOptions *sql.TxOptions
	closer    func() error
}

func withCloser(closer func() error) Option {
	return func(o *Opener) {
		o.closer = closer
	}
}

func NewOpener(db *bun.DB, opts ...Option) (*Opener, error) {
	opener := &Opener{db: db}
	for _, opt := range opts {
		if opt != nil {
			opt(opener)
		}
	}
	store, err := NewStore(db, opener.cache)
	if err != nil {
		return nil, err
	}
	opener.store = store
	return opener, nil
}

func (o *Opener) OpenSession(ctx context.Context, transactional bool) (core.SessionBackend, error) {
	if !transactional {
		return &sessionBackend{store: o.store}, nil
	}
	tx, err := o.db.BeginTx(ctx, o.txOptions)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: begin transaction: %w", err)
	}
	return &sessionBackend{store: o.store.WithTx(tx)}, nil
}

func (o *Opener) SupportsTransactions() bool {
	return true
}

func (o *Opener) Close(context.Context) error {
	if o.closer != nil {
		return o.closer()
	}
	return o.db.Close()
}

type sessionBackend struct {
	store *Store
}

func (s *sessionBackend) Bind(_ context.Context, scope *core.InjectionContext) error {
	if err := scope.Injector().BindInstance(core.StorageCapability, s.store); err != nil {
		return err
	}
	return backend.BindServices(scope)
}

func (s *sessionBackend) Commit(ctx context.Context) error {
	return s.store.Commit(ctx)
}

func (s *sessionBackend) Rollback(ctx context.Context) error {
	return s.store.Rollback(ctx)
}

// Release rolls back a transaction nobody finished; committed or rolled
// back transactions ignore it.
func (s *sessionBackend) Release(ctx context.Context) error {
	return s.store.Rollback(ctx)
}

var (
	_ core.Profile        = (*Profile)(nil)
	_ core.SessionOpener  = (*Opener)(nil)
	_ core.SessionBackend = (*sessionBackend)(nil)
)
