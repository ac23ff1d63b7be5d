package command

import (
	"bytes"
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-vcagent/backend/memory"
	"github.com/goliatone/go-vcagent/core"
	"github.com/goliatone/go-vcagent/credential"
)

func createDID(t *testing.T, profile core.Profile) core.DIDInfo {
	t.Helper()
	collector := gocmd.NewResult[core.DIDInfo]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := NewCreateDIDCommand(profile).Execute(ctx, CreateDIDMessage{Metadata: map[string]string{"alias": "issuer"}}); err != nil {
		t.Fatalf("execute create did: %v", err)
	}
	did, ok := collector.Load()
	if !ok || did.DID == "" {
		t.Fatalf("expected did result, got %#v", did)
	}
	return did
}

func TestCreateDIDCommand_ExecuteStoresResult(t *testing.T) {
	profile := memory.TestProfile(t)
	did := createDID(t, profile)
	if did.Metadata["alias"] != "issuer" {
		t.Fatalf("expected metadata on result, got %#v", did)
	}
	if _, err := profile.Store().GetRecord(context.Background(), "wallet.did", did.DID); err != nil {
		t.Fatalf("expected committed did record: %v", err)
	}
}

func TestIssueCredentialCommand_IssuesAndStoresInOneTransaction(t *testing.T) {
	profile := memory.TestProfile(t)
	did := createDID(t, profile)

	collector := gocmd.NewResult[core.Credential]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewIssueCredentialCommand(profile).Execute(ctx, IssueCredentialMessage{
		Request: core.IssueRequest{
			IssuerDID:  did.DID,
			SubjectDID: "did:example:alice",
			Types:      []string{"MembershipCredential"},
			Claims:     map[string]any{"member": true},
		},
		Store: true,
	})
	if err != nil {
		t.Fatalf("execute issue: %v", err)
	}
	issued, ok := collector.Load()
	if !ok || issued.JWT == "" {
		t.Fatalf("expected issued credential result")
	}
	if _, err := profile.Store().GetRecord(context.Background(), credential.RecordTypeCredential, issued.ID); err != nil {
		t.Fatalf("expected stored credential: %v", err)
	}

	before := profile.Store().Len()
	err = NewIssueCredentialCommand(profile).Execute(context.Background(), IssueCredentialMessage{
		Request: core.IssueRequest{IssuerDID: "did:sov:unknown", SubjectDID: "did:example:alice"},
		Store:   true,
	})
	if err == nil {
		t.Fatalf("expected unknown issuer to fail")
	}
	if profile.Store().Len() != before {
		t.Fatalf("failed command must not leave records behind")
	}
}

func TestStoreAndDeleteCredentialCommands(t *testing.T) {
	profile := memory.TestProfile(t)
	did := createDID(t, profile)

	issued := gocmd.NewResult[core.Credential]()
	ctx := gocmd.ContextWithResult(context.Background(), issued)
	if err := NewIssueCredentialCommand(profile).Execute(ctx, IssueCredentialMessage{
		Request: core.IssueRequest{IssuerDID: did.DID, SubjectDID: "did:example:bob"},
	}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	vc, _ := issued.Load()

	stored := gocmd.NewResult[string]()
	ctx = gocmd.ContextWithResult(context.Background(), stored)
	if err := NewStoreCredentialCommand(profile).Execute(ctx, StoreCredentialMessage{Credential: vc}); err != nil {
		t.Fatalf("store: %v", err)
	}
	id, ok := stored.Load()
	if !ok || id != vc.ID {
		t.Fatalf("expected stored id %q, got %q", vc.ID, id)
	}

	if err := NewDeleteCredentialCommand(profile).Execute(context.Background(), DeleteCredentialMessage{ID: id}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err := NewDeleteCredentialCommand(profile).Execute(context.Background(), DeleteCredentialMessage{ID: id})
	if !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("expected second delete to report not found, got %v", err)
	}
}

func TestMessages_ValidateReturnsRichError(t *testing.T) {
	cases := []interface{ Validate() error }{
		CreateDIDMessage{Seed: bytes.Repeat([]byte{1}, 5)},
		IssueCredentialMessage{},
		IssueCredentialMessage{Request: core.IssueRequest{IssuerDID: "did:sov:x"}},
		StoreCredentialMessage{},
		DeleteCredentialMessage{ID: " "},
	}
	for _, msg := range cases {
		err := msg.Validate()
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("%T: expected go-errors envelope, got %v", msg, err)
		}
		if rich.Category != goerrors.CategoryValidation || rich.TextCode != CommandErrorBadInput {
			t.Fatalf("%T: unexpected envelope %q %q", msg, rich.Category, rich.TextCode)
		}
	}
	if err := (CreateDIDMessage{}).Validate(); err != nil {
		t.Fatalf("random seed is valid, got %v", err)
	}
}

func TestCommands_NilProfileReturnsRichError(t *testing.T) {
	var cmd *CreateDIDCommand
	err := cmd.Execute(context.Background(), CreateDIDMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal dependency error, got %v", err)
	}
	if err := NewIssueCredentialCommand(nil).Execute(context.Background(), IssueCredentialMessage{}); err == nil {
		t.Fatalf("expected nil profile to fail")
	}
}
