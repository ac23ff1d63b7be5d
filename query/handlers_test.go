package query

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-vcagent/backend/memory"
	"github.com/goliatone/go-vcagent/core"
)

func seedCredential(t *testing.T, profile core.Profile) core.Credential {
	t.Helper()
	var issued core.Credential
	err := core.WithTransaction(context.Background(), profile, func(ctx context.Context, session *core.Session) error {
		wallet, err := core.Inject[core.Wallet](ctx, session, core.WalletCapability)
		if err != nil {
			return err
		}
		did, err := wallet.CreateLocalDID(ctx, nil, nil)
		if err != nil {
			return err
		}
		issuer, err := core.Inject[core.CredentialIssuer](ctx, session, core.IssuerCapability)
		if err != nil {
			return err
		}
		issued, err = issuer.IssueCredential(ctx, core.IssueRequest{
			IssuerDID:  did.DID,
			SubjectDID: "did:example:carol",
			Types:      []string{"AgeCredential"},
		})
		if err != nil {
			return err
		}
		holder, err := core.Inject[core.CredentialHolder](ctx, session, core.HolderCapability)
		if err != nil {
			return err
		}
		_, err = holder.StoreCredential(ctx, issued)
		return err
	})
	if err != nil {
		t.Fatalf("seed credential: %v", err)
	}
	return issued
}

func TestQueries_ReadThroughPlainSessions(t *testing.T) {
	ctx := context.Background()
	profile := memory.TestProfile(t)
	issued := seedCredential(t, profile)

	result, err := NewVerifyCredentialQuery(profile).Query(ctx, VerifyCredentialMessage{JWT: issued.JWT})
	if err != nil || !result.Verified {
		t.Fatalf("expected verified credential, got %#v err=%v", result, err)
	}
	result, err = NewVerifyCredentialQuery(profile).Query(ctx, VerifyCredentialMessage{JWT: "garbage"})
	if err != nil || result.Verified || result.Reason == "" {
		t.Fatalf("expected failed verification result, got %#v err=%v", result, err)
	}

	loaded, err := NewGetCredentialQuery(profile).Query(ctx, GetCredentialMessage{ID: issued.ID})
	if err != nil || loaded.JWT != issued.JWT {
		t.Fatalf("expected stored credential, got %#v err=%v", loaded, err)
	}
	if _, err := NewGetCredentialQuery(profile).Query(ctx, GetCredentialMessage{ID: "urn:uuid:missing"}); !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	found, err := NewFindCredentialsQuery(profile).Query(ctx, FindCredentialsMessage{Query: core.CredentialQuery{Type: "AgeCredential"}})
	if err != nil || len(found) != 1 {
		t.Fatalf("expected one credential by type, got %d err=%v", len(found), err)
	}

	dids, err := NewListDIDsQuery(profile).Query(ctx, ListDIDsMessage{})
	if err != nil || len(dids) != 1 || dids[0].DID != issued.Issuer {
		t.Fatalf("expected issuer did, got %#v err=%v", dids, err)
	}
}

func TestQueries_ValidateAndDependencies(t *testing.T) {
	ctx := context.Background()
	_, err := NewVerifyCredentialQuery(memory.TestProfile(t)).Query(ctx, VerifyCredentialMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != QueryErrorBadInput {
		t.Fatalf("expected %s, got %v", QueryErrorBadInput, err)
	}
	if err := (FindCredentialsMessage{Query: core.CredentialQuery{Limit: -1}}).Validate(); err == nil {
		t.Fatalf("expected negative limit to fail")
	}

	var q *ListDIDsQuery
	if _, err := q.Query(ctx, ListDIDsMessage{}); !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestQueries_ClosedProfileIsMisuse(t *testing.T) {
	ctx := context.Background()
	profile := memory.TestProfile(t)
	if err := profile.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := NewListDIDsQuery(profile).Query(ctx, ListDIDsMessage{}); !errors.Is(err, core.ErrMisuse) {
		t.Fatalf("expected misuse on closed profile, got %v", err)
	}
}
