package query

import (
	"context"
	"errors"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-vcagent/core"
)

// withSession runs fn in a plain session closed before returning.
func withSession[R any](ctx context.Context, profile core.Profile, fn func(ctx context.Context, session *core.Session) (R, error)) (out R, err error) {
	session, err := profile.Session(ctx)
	if err != nil {
		return out, err
	}
	defer func() {
		err = errors.Join(err, session.Close(ctx))
	}()
	return fn(ctx, session)
}

type VerifyCredentialQuery struct {
	profile core.Profile
}

func NewVerifyCredentialQuery(profile core.Profile) *VerifyCredentialQuery {
	return &VerifyCredentialQuery{profile: profile}
}

// Query reports a credential that fails verification through the result,
// not the error.
func (q *VerifyCredentialQuery) Query(ctx context.Context, msg VerifyCredentialMessage) (core.VerificationResult, error) {
	if q == nil || q.profile == nil {
		return core.VerificationResult{}, queryDependencyError("query: verify credential profile is required")
	}
	if err := msg.Validate(); err != nil {
		return core.VerificationResult{}, err
	}
	return withSession(ctx, q.profile, func(ctx context.Context, session *core.Session) (core.VerificationResult, error) {
		verifier, err := core.Inject[core.CredentialVerifier](ctx, session, core.VerifierCapability)
		if err != nil {
			return core.VerificationResult{}, err
		}
		return verifier.VerifyCredential(ctx, msg.JWT)
	})
}

type GetCredentialQuery struct {
	profile core.Profile
}

func NewGetCredentialQuery(profile core.Profile) *GetCredentialQuery {
	return &GetCredentialQuery{profile: profile}
}

func (q *GetCredentialQuery) Query(ctx context.Context, msg GetCredentialMessage) (core.Credential, error) {
	if q == nil || q.profile == nil {
		return core.Credential{}, queryDependencyError("query: get credential profile is required")
	}
	if err := msg.Validate(); err != nil {
		return core.Credential{}, err
	}
	return withSession(ctx, q.profile, func(ctx context.Context, session *core.Session) (core.Credential, error) {
		holder, err := core.Inject[core.CredentialHolder](ctx, session, core.HolderCapability)
		if err != nil {
			return core.Credential{}, err
		}
		return holder.GetCredential(ctx, msg.ID)
	})
}

type FindCredentialsQuery struct {
	profile core.Profile
}

func NewFindCredentialsQuery(profile core.Profile) *FindCredentialsQuery {
	return &FindCredentialsQuery{profile: profile}
}

func (q *FindCredentialsQuery) Query(ctx context.Context, msg FindCredentialsMessage) ([]core.Credential, error) {
	if q == nil || q.profile == nil {
		return nil, queryDependencyError("query: find credentials profile is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return withSession(ctx, q.profile, func(ctx context.Context, session *core.Session) ([]core.Credential, error) {
		holder, err := core.Inject[core.CredentialHolder](ctx, session, core.HolderCapability)
		if err != nil {
			return nil, err
		}
		return holder.FindCredentials(ctx, msg.Query)
	})
}

type ListDIDsQuery struct {
	profile core.Profile
}

func NewListDIDsQuery(profile core.Profile) *ListDIDsQuery {
	return &ListDIDsQuery{profile: profile}
}

func (q *ListDIDsQuery) Query(ctx context.Context, _ ListDIDsMessage) ([]core.DIDInfo, error) {
	if q == nil || q.profile == nil {
		return nil, queryDependencyError("query: list dids profile is required")
	}
	return withSession(ctx, q.profile, func(ctx context.Context, session *core.Session) ([]core.DIDInfo, error) {
		wallet, err := core.Inject[core.Wallet](ctx, session, core.WalletCapability)
		if err != nil {
			return nil, err
		}
		return wallet.GetLocalDIDs(ctx)
	})
}

var (
	_ gocmd.Querier[VerifyCredentialMessage, core.VerificationResult] = (*VerifyCredentialQuery)(nil)
	_ gocmd.Querier[GetCredentialMessage, core.Credential]            = (*GetCredentialQuery)(nil)
	_ gocmd.Querier[FindCredentialsMessage, []core.Credential]        = (*FindCredentialsQuery)(nil)
	_ gocmd.Querier[ListDIDsMessage, []core.DIDInfo]                  = (*ListDIDsQuery)(nil)
)
