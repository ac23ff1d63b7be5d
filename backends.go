package vcagent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-vcagent/backend/memory"
	redisstore "github.com/goliatone/go-vcagent/backend/redis"
	sqlstore "github.com/goliatone/go-vcagent/backend/sql"
	"github.com/goliatone/go-vcagent/core"
)

// BackendOpener builds the profile for one wallet.type. opts carry the
// logger, metrics and bindings shared by every backend.
type BackendOpener func(ctx context.Context, cfg Config, opts []core.ProfileOption) (core.Profile, error)

// BackendRegistry maps wallet.type names to openers. Names are matched
// case-insensitively.
type BackendRegistry struct {
	mu      sync.RWMutex
	openers map[string]BackendOpener
}

func NewBackendRegistry() *BackendRegistry {
	return &BackendRegistry{openers: map[string]BackendOpener{}}
}

// DefaultBackends returns a registry holding the memory, sql and redis
// backends.
func DefaultBackends() *BackendRegistry {
	registry := NewBackendRegistry()
	_ = registry.Register(memory.BackendName, openMemory)
	_ = registry.Register(sqlstore.BackendName, SQLBackend())
	_ = registry.Register(redisstore.BackendName, openRedis)
	return registry
}

func (r *BackendRegistry) Register(name string, opener BackendOpener) error {
	if r == nil {
		return fmt.Errorf("vcagent: backend registry is nil")
	}
	name = normalizeBackend(name)
	if name == "" {
		return fmt.Errorf("vcagent: backend name is required")
	}
	if opener == nil {
		return fmt.Errorf("vcagent: backend %q opener is required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.openers[name]; exists {
		return fmt.Errorf("vcagent: backend %q already registered", name)
	}
	r.openers[name] = opener
	return nil
}

func (r *BackendRegistry) Lookup(name string) (BackendOpener, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	opener, ok := r.openers[normalizeBackend(name)]
	return opener, ok
}

func (r *BackendRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.openers))
	for name := range r.openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeBackend(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func openMemory(_ context.Context, cfg Config, opts []core.ProfileOption) (core.Profile, error) {
	return memory.NewProfile(cfg.Settings(), opts...)
}

// SQLBackend opens sql profiles with storeOpts, e.g. a record cache.
func SQLBackend(storeOpts ...sqlstore.Option) BackendOpener {
	return func(ctx context.Context, cfg Config, opts []core.ProfileOption) (core.Profile, error) {
		return sqlstore.NewProfile(ctx, cfg.SQL, cfg.Settings(), storeOpts, opts...)
	}
}

func openRedis(ctx context.Context, cfg Config, opts []core.ProfileOption) (core.Profile, error) {
	return redisstore.NewProfile(ctx, cfg.Redis, cfg.Settings(), opts...)
}
