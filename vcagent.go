// Package vcagent opens agent profiles from configuration. The backend is
// chosen by wallet.type through a BackendRegistry.
package vcagent

import (
	"context"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-vcagent/adapters/gologger"
	"github.com/goliatone/go-vcagent/core"
	"github.com/goliatone/go-vcagent/security"
	"github.com/goliatone/go-vcagent/wallet"
)

type Config = core.Config

type Profile = core.Profile

type Session = core.Session

type Settings = core.Settings

var (
	WithTransaction = core.WithTransaction
	LoadConfig      = core.LoadConfig
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

type Option func(*options)

type options struct {
	backends       *BackendRegistry
	logger         glog.Logger
	loggerProvider glog.LoggerProvider
	metrics        core.MetricsRecorder
	profileOpts    []core.ProfileOption
}

func WithBackends(registry *BackendRegistry) Option {
	return func(o *options) {
		o.backends = registry
	}
}

func WithLogger(logger glog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithLoggerProvider(provider glog.LoggerProvider) Option {
	return func(o *options) {
		o.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(o *options) {
		o.metrics = recorder
	}
}

// WithProfileOptions appends raw profile options after the ones Open
// derives from the configuration.
func WithProfileOptions(opts ...core.ProfileOption) Option {
	return func(o *options) {
		o.profileOpts = append(o.profileOpts, opts...)
	}
}

// Open validates cfg and opens the profile of its wallet.type. A configured
// security.app_key seals every wallet key at rest.
func Open(ctx context.Context, cfg Config, opts ...Option) (Profile, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	resolved := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&resolved)
		}
	}
	if resolved.backends == nil {
		resolved.backends = DefaultBackends()
	}
	opener, ok := resolved.backends.Lookup(cfg.Wallet.Type)
	if !ok {
		return nil, core.NewError(core.ErrInvalidConfiguration, "",
			"unknown wallet type "+strings.TrimSpace(cfg.Wallet.Type)+
				" (known: "+strings.Join(resolved.backends.Names(), ", ")+")", nil)
	}

	profileOpts := gologger.ProfileOptions("vcagent", resolved.loggerProvider, resolved.logger)
	if resolved.metrics != nil {
		profileOpts = append(profileOpts, core.WithMetricsRecorder(resolved.metrics))
	}
	if appKey := strings.TrimSpace(cfg.Security.AppKey); appKey != "" {
		sealer, err := security.NewAppKeySealerFromString(appKey)
		if err != nil {
			return nil, err
		}
		profileOpts = append(profileOpts, core.WithBinding(wallet.SealerCapability, wallet.Sealer(sealer)))
	}
	profileOpts = append(profileOpts, resolved.profileOpts...)
	return opener(ctx, cfg, profileOpts)
}
