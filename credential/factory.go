package credential

import (
	"context"
	"time"

	"github.com/goliatone/go-vcagent/core"
)

const (
	IssuerFactoryKey   = "credential.Issuer"
	VerifierFactoryKey = "credential.Verifier"
	HolderFactoryKey   = "credential.Holder"
)

// IssuerFactory signs with the Wallet bound in the session scope. A
// time.Duration positional argument sets the default TTL.
func IssuerFactory(ctx context.Context, in core.FactoryInput) (any, error) {
	wallet, err := core.Resolve[core.Wallet](ctx, in.Injector, core.WalletCapability)
	if err != nil {
		return nil, err
	}
	opts := []IssuerOption{}
	if len(in.Args) > 0 {
		ttl, err := core.ArgAs[time.Duration](in, 0)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithDefaultTTL(ttl))
	}
	return NewIssuer(wallet, opts...)
}

func VerifierFactory(context.Context, core.FactoryInput) (any, error) {
	return NewVerifier(), nil
}

func HolderFactory(ctx context.Context, in core.FactoryInput) (any, error) {
	storage, err := core.Resolve[core.Storage](ctx, in.Injector, core.StorageCapability)
	if err != nil {
		return nil, err
	}
	return NewHolder(storage)
}

// Register adds the issuer, verifier and holder factories under their keys.
func Register(registry *core.FactoryRegistry) error {
	if err := registry.Register(IssuerFactoryKey, IssuerFactory); err != nil {
		return err
	}
	if err := registry.Register(VerifierFactoryKey, VerifierFactory); err != nil {
		return err
	}
	return registry.Register(HolderFactoryKey, HolderFactory)
}
