// Package backend holds what every storage backend shares: the factory
// registry for the wallet and credential services and the session bindings
// that reach them through deferred Class providers.
package backend

import (
	"github.com/goliatone/go-vcagent/core"
	"github.com/goliatone/go-vcagent/credential"
	"github.com/goliatone/go-vcagent/wallet"
)

// RegisterFactories adds the wallet and credential service factories.
func RegisterFactories(registry *core.FactoryRegistry) error {
	if registry == nil {
		return core.NewError(core.ErrFactoryRegistration, "", "factory registry is nil", nil)
	}
	if err := wallet.Register(registry); err != nil {
		return err
	}
	return credential.Register(registry)
}

// NewFactoryRegistry returns a registry holding every service factory.
func NewFactoryRegistry() (*core.FactoryRegistry, error) {
	registry := core.NewFactoryRegistry()
	if err := RegisterFactories(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// BindServices binds the wallet and credential capabilities in scope. They
// are constructed on first Inject against whatever Storage the backend bound
// in the same scope.
func BindServices(scope *core.InjectionContext) error {
	if scope == nil {
		return core.NewError(core.ErrMisuse, "", "injection scope is nil", nil)
	}
	injector := scope.Injector()
	bindings := []struct {
		capability core.Capability
		key        string
	}{
		{core.WalletCapability, wallet.FactoryKey},
		{core.IssuerCapability, credential.IssuerFactoryKey},
		{core.VerifierCapability, credential.VerifierFactoryKey},
		{core.HolderCapability, credential.HolderFactoryKey},
	}
	for _, binding := range bindings {
		if err := injector.BindProvider(binding.capability, core.NewDeferredClassProvider(binding.key)); err != nil {
			return err
		}
	}
	return nil
}
