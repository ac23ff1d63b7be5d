package credential_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-vcagent/backend/memory"
	"github.com/goliatone/go-vcagent/core"
	"github.com/goliatone/go-vcagent/credential"
)

type services struct {
	wallet   core.Wallet
	issuer   core.CredentialIssuer
	verifier core.CredentialVerifier
	holder   core.CredentialHolder
}

func openServices(t *testing.T) (*core.Session, services) {
	t.Helper()
	ctx := context.Background()
	session, err := memory.TestProfile(t).Session(ctx)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	t.Cleanup(func() { _ = session.Close(ctx) })

	var out services
	if out.wallet, err = core.Inject[core.Wallet](ctx, session, core.WalletCapability); err != nil {
		t.Fatalf("inject wallet: %v", err)
	}
	if out.issuer, err = core.Inject[core.CredentialIssuer](ctx, session, core.IssuerCapability); err != nil {
		t.Fatalf("inject issuer: %v", err)
	}
	if out.verifier, err = core.Inject[core.CredentialVerifier](ctx, session, core.VerifierCapability); err != nil {
		t.Fatalf("inject verifier: %v", err)
	}
	if out.holder, err = core.Inject[core.CredentialHolder](ctx, session, core.HolderCapability); err != nil {
		t.Fatalf("inject holder: %v", err)
	}
	return session, out
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, svc := openServices(t)

	issuerDID, err := svc.wallet.CreateLocalDID(ctx, nil, nil)
	if err != nil {
		t.Fatalf("create issuer did: %v", err)
	}
	issued, err := svc.issuer.IssueCredential(ctx, core.IssueRequest{
		IssuerDID:  issuerDID.DID,
		SubjectDID: "did:example:alice",
		Types:      []string{"UniversityDegree"},
		Claims:     map[string]any{"degree": "BSc"},
		TTL:        time.Hour,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !strings.HasPrefix(issued.ID, "urn:uuid:") {
		t.Fatalf("expected generated urn id, got %q", issued.ID)
	}
	if len(issued.Types) != 2 || issued.Types[0] != credential.BaseCredentialType {
		t.Fatalf("expected base type first, got %v", issued.Types)
	}

	result, err := svc.verifier.VerifyCredential(ctx, issued.JWT)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Verified {
		t.Fatalf("expected verified credential, reason %q", result.Reason)
	}
	if result.Credential.Issuer != issuerDID.DID || result.Credential.Subject != "did:example:alice" {
		t.Fatalf("unexpected verified credential %#v", result.Credential)
	}
	if result.Credential.Claims["degree"] != "BSc" {
		t.Fatalf("expected claims round trip, got %#v", result.Credential.Claims)
	}
}

func TestVerifyRejectsTamperedAndForeignCredentials(t *testing.T) {
	ctx := context.Background()
	_, svc := openServices(t)
	issuerDID, _ := svc.wallet.CreateLocalDID(ctx, nil, nil)
	otherDID, _ := svc.wallet.CreateLocalDID(ctx, nil, nil)
	issued, err := svc.issuer.IssueCredential(ctx, core.IssueRequest{
		IssuerDID:  issuerDID.DID,
		SubjectDID: "did:example:bob",
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(issued.JWT, ".")
	forged := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	result, err := svc.verifier.VerifyCredential(ctx, forged)
	if err != nil {
		t.Fatalf("verify forged: %v", err)
	}
	if result.Verified || result.Reason != credential.ReasonSignatureInvalid {
		t.Fatalf("expected invalid signature, got %#v", result)
	}

	// Signed by a real wallet key that is not the one the issuer DID names.
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"iss": issuerDID.DID,
		"sub": "did:example:bob",
		"vc":  map[string]any{"type": []string{credential.BaseCredentialType}},
	})
	token.Header["kid"] = otherDID.Verkey
	signingString, err := token.SigningString()
	if err != nil {
		t.Fatalf("signing string: %v", err)
	}
	signature, err := svc.wallet.Sign(ctx, []byte(signingString), otherDID.Verkey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	result, _ = svc.verifier.VerifyCredential(ctx, signingString+"."+token.EncodeSegment(signature))
	if result.Verified || result.Reason != credential.ReasonIssuerMismatch {
		t.Fatalf("expected issuer mismatch, got %#v", result)
	}

	result, _ = svc.verifier.VerifyCredential(ctx, "not-a-jwt")
	if result.Verified || result.Reason != credential.ReasonMalformed {
		t.Fatalf("expected malformed, got %#v", result)
	}

	if _, err := svc.verifier.VerifyCredential(ctx, "  "); err == nil {
		t.Fatalf("expected empty input to fail")
	}
}

func TestVerifyRejectsExpiredCredential(t *testing.T) {
	ctx := context.Background()
	_, svc := openServices(t)
	issuerDID, _ := svc.wallet.CreateLocalDID(ctx, nil, nil)

	past := time.Now().Add(-2 * time.Hour)
	issuer, err := credential.NewIssuer(svc.wallet, credential.WithIssuerClock(func() time.Time { return past }))
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	issued, err := issuer.IssueCredential(ctx, core.IssueRequest{
		IssuerDID:  issuerDID.DID,
		SubjectDID: "did:example:carol",
		TTL:        time.Hour,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	result, _ := credential.NewVerifier().VerifyCredential(ctx, issued.JWT)
	if result.Verified || result.Reason != credential.ReasonExpired {
		t.Fatalf("expected expired, got %#v", result)
	}
	if result.Credential.Issuer != issuerDID.DID {
		t.Fatalf("expired result should still describe the credential, got %#v", result.Credential)
	}

	lenient := credential.NewVerifier(credential.WithVerifierClock(func() time.Time { return past.Add(time.Minute) }))
	result, _ = lenient.VerifyCredential(ctx, issued.JWT)
	if !result.Verified {
		t.Fatalf("expected credential valid inside its window, got %q", result.Reason)
	}
}

func TestIssueRequiresIssuerDIDHeldByWallet(t *testing.T) {
	ctx := context.Background()
	_, svc := openServices(t)

	_, err := svc.issuer.IssueCredential(ctx, core.IssueRequest{
		IssuerDID:  "did:sov:unknown",
		SubjectDID: "did:example:dave",
	})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != credential.CredentialErrorUnknown {
		t.Fatalf("expected %s, got %v", credential.CredentialErrorUnknown, err)
	}
	if !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("expected not-found cause to stay reachable, got %v", err)
	}

	_, err = svc.issuer.IssueCredential(ctx, core.IssueRequest{SubjectDID: "did:example:dave"})
	if !goerrors.As(err, &rich) || rich.TextCode != credential.CredentialErrorBadInput {
		t.Fatalf("expected bad input for missing issuer, got %v", err)
	}
}

func TestHolderStoresAndQueriesCredentials(t *testing.T) {
	ctx := context.Background()
	_, svc := openServices(t)
	issuerDID, _ := svc.wallet.CreateLocalDID(ctx, nil, nil)

	issue := func(subject string, kind string) core.Credential {
		t.Helper()
		issued, err := svc.issuer.IssueCredential(ctx, core.IssueRequest{
			IssuerDID:  issuerDID.DID,
			SubjectDID: subject,
			Types:      []string{kind},
		})
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		return issued
	}
	first := issue("did:example:erin", "Membership")
	second := issue("did:example:erin", "Degree")
	third := issue("did:example:frank", "Membership")
	for _, cred := range []core.Credential{first, second, third} {
		if _, err := svc.holder.StoreCredential(ctx, cred); err != nil {
			t.Fatalf("store: %v", err)
		}
	}
	if _, err := svc.holder.StoreCredential(ctx, first); !errors.Is(err, core.ErrDuplicateRecord) {
		t.Fatalf("expected duplicate store to fail, got %v", err)
	}

	bySubject, err := svc.holder.FindCredentials(ctx, core.CredentialQuery{Subject: "did:example:erin"})
	if err != nil || len(bySubject) != 2 {
		t.Fatalf("expected two credentials for erin, got %d (%v)", len(bySubject), err)
	}
	byType, _ := svc.holder.FindCredentials(ctx, core.CredentialQuery{Type: "Membership"})
	if len(byType) != 2 {
		t.Fatalf("expected two memberships, got %d", len(byType))
	}
	limited, _ := svc.holder.FindCredentials(ctx, core.CredentialQuery{Issuer: issuerDID.DID, Limit: 1})
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}

	loaded, err := svc.holder.GetCredential(ctx, second.ID)
	if err != nil || loaded.JWT != second.JWT {
		t.Fatalf("unexpected loaded credential %#v (%v)", loaded, err)
	}
	if err := svc.holder.DeleteCredential(ctx, second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.holder.GetCredential(ctx, second.ID); !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestFactoriesRegisterOnce(t *testing.T) {
	registry := core.NewFactoryRegistry()
	if err := credential.Register(registry); err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, key := range []string{credential.IssuerFactoryKey, credential.VerifierFactoryKey, credential.HolderFactoryKey} {
		if _, ok := registry.Lookup(key); !ok {
			t.Fatalf("missing factory %s", key)
		}
	}
	if err := credential.Register(registry); !errors.Is(err, core.ErrFactoryRegistration) {
		t.Fatalf("expected duplicate registration to fail, got %v", err)
	}
}
