package wallet

import (
	"context"

	"github.com/goliatone/go-vcagent/core"
)

const FactoryKey = "wallet.Keyring"

// Factory builds a Keyring over the Storage visible from the session scope,
// sealing keys when a Sealer is bound.
func Factory(ctx context.Context, in core.FactoryInput) (any, error) {
	storage, err := core.Resolve[core.Storage](ctx, in.Injector, core.StorageCapability)
	if err != nil {
		return nil, err
	}
	opts := []Option{}
	if in.Injector.Has(SealerCapability) {
		sealer, err := core.Resolve[Sealer](ctx, in.Injector, SealerCapability)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithSealer(sealer))
	}
	return NewKeyring(storage, opts...)
}

func Register(registry *core.FactoryRegistry) error {
	return registry.Register(FactoryKey, Factory)
}

var _ core.Wallet = (*Keyring)(nil)
