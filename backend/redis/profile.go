package redisstore

import (
	"context"

	"github.com/goliatone/go-vcagent/backend"
	"github.com/goliatone/go-vcagent/core"
	"github.com/redis/go-redis/v9"
)

const BackendName = "redis"

// Profile is a non-transactional profile: Transaction returns a plain
// session and Commit or Rollback only close it.
type Profile struct {
	*core.BaseProfile
	store *Store
}

// NewProfile connects to cfg.URL. Closing the profile closes the client.
func NewProfile(ctx context.Context, cfg core.RedisConfig, settings core.Settings, opts ...core.ProfileOption) (*Profile, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := NewStore(client, WithKeyPrefix(cfg.KeyPrefix))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	profile, err := NewProfileWithStore(store, settings, opts...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return profile, nil
}

func NewProfileWithStore(store *Store, settings core.Settings, opts ...core.ProfileOption) (*Profile, error) {
	if store == nil {
		return nil, core.NewError(core.ErrInvalidConfiguration, "", "redis store is required", nil)
	}
	registry, err := backend.NewFactoryRegistry()
	if err != nil {
		return nil, err
	}
	opts = append([]core.ProfileOption{core.WithFactories(registry)}, opts...)
	base, err := core.NewBaseProfile(BackendName, "", &Opener{client: store.client, store: store}, settings, opts...)
	if err != nil {
		return nil, err
	}
	return &Profile{BaseProfile: base, store: store}, nil
}

func (p *Profile) Store() *Store {
	if p == nil {
		return nil
	}
	return p.store
}

type Opener struct {
	client *redis.Client
	store  *Store
}

func (o *Opener) OpenSession(ctx context.Context, _ bool) (core.SessionBackend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sessionBackend{store: o.store}, nil
}

func (o *Opener) SupportsTransactions() bool {
	return false
}

func (o *Opener) Close(context.Context) error {
	return o.client.Close()
}

type sessionBackend struct {
	store *Store
}

func (s sessionBackend) Bind(_ context.Context, scope *core.InjectionContext) error {
	if err := scope.Injector().BindInstance(core.StorageCapability, s.store); err != nil {
		return err
	}
	return backend.BindServices(scope)
}

func (sessionBackend) Commit(context.Context) error   { return nil }
func (sessionBackend) Rollback(context.Context) error { return nil }
func (sessionBackend) Release(context.Context) error  { return nil }

var (
	_ core.Profile        = (*Profile)(nil)
	_ core.SessionOpener  = (*Opener)(nil)
	_ core.SessionBackend = sessionBackend{}
)
