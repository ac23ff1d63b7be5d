package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-vcagent/core"
)

// Every command runs in its own profile transaction. On backends without
// transactions the writes of a failed command are not undone.

type CreateDIDCommand struct {
	profile core.Profile
}

func NewCreateDIDCommand(profile core.Profile) *CreateDIDCommand {
	return &CreateDIDCommand{profile: profile}
}

func (c *CreateDIDCommand) Execute(ctx context.Context, msg CreateDIDMessage) error {
	if c == nil || c.profile == nil {
		return commandDependencyError("command: create did profile is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	var out core.DIDInfo
	err := core.WithTransaction(ctx, c.profile, func(ctx context.Context, session *core.Session) error {
		wallet, err := core.Inject[core.Wallet](ctx, session, core.WalletCapability)
		if err != nil {
			return err
		}
		out, err = wallet.CreateLocalDID(ctx, msg.Seed, msg.Metadata)
		return err
	})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type IssueCredentialCommand struct {
	profile core.Profile
}

func NewIssueCredentialCommand(profile core.Profile) *IssueCredentialCommand {
	return &IssueCredentialCommand{profile: profile}
}

func (c *IssueCredentialCommand) Execute(ctx context.Context, msg IssueCredentialMessage) error {
	if c == nil || c.profile == nil {
		return commandDependencyError("command: issue credential profile is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	var out core.Credential
	err := core.WithTransaction(ctx, c.profile, func(ctx context.Context, session *core.Session) error {
		issuer, err := core.Inject[core.CredentialIssuer](ctx, session, core.IssuerCapability)
		if err != nil {
			return err
		}
		out, err = issuer.IssueCredential(ctx, msg.Request)
		if err != nil || !msg.Store {
			return err
		}
		holder, err := core.Inject[core.CredentialHolder](ctx, session, core.HolderCapability)
		if err != nil {
			return err
		}
		_, err = holder.StoreCredential(ctx, out)
		return err
	})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type StoreCredentialCommand struct {
	profile core.Profile
}

func NewStoreCredentialCommand(profile core.Profile) *StoreCredentialCommand {
	return &StoreCredentialCommand{profile: profile}
}

// Execute stores the credential and records its id as the result.
func (c *StoreCredentialCommand) Execute(ctx context.Context, msg StoreCredentialMessage) error {
	if c == nil || c.profile == nil {
		return commandDependencyError("command: store credential profile is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	var id string
	err := core.WithTransaction(ctx, c.profile, func(ctx context.Context, session *core.Session) error {
		holder, err := core.Inject[core.CredentialHolder](ctx, session, core.HolderCapability)
		if err != nil {
			return err
		}
		id, err = holder.StoreCredential(ctx, msg.Credential)
		return err
	})
	if err != nil {
		return err
	}
	storeResult(ctx, id)
	return nil
}

type DeleteCredentialCommand struct {
	profile core.Profile
}

func NewDeleteCredentialCommand(profile core.Profile) *DeleteCredentialCommand {
	return &DeleteCredentialCommand{profile: profile}
}

func (c *DeleteCredentialCommand) Execute(ctx context.Context, msg DeleteCredentialMessage) error {
	if c == nil || c.profile == nil {
		return commandDependencyError("command: delete credential profile is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return core.WithTransaction(ctx, c.profile, func(ctx context.Context, session *core.Session) error {
		holder, err := core.Inject[core.CredentialHolder](ctx, session, core.HolderCapability)
		if err != nil {
			return err
		}
		return holder.DeleteCredential(ctx, msg.ID)
	})
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

var (
	_ gocmd.Commander[CreateDIDMessage]        = (*CreateDIDCommand)(nil)
	_ gocmd.Commander[IssueCredentialMessage]  = (*IssueCredentialCommand)(nil)
	_ gocmd.Commander[StoreCredentialMessage]  = (*StoreCredentialCommand)(nil)
	_ gocmd.Commander[DeleteCredentialMessage] = (*DeleteCredentialCommand)(nil)
)
