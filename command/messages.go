package command

import (
	"strings"

	"github.com/goliatone/go-vcagent/core"
)

const (
	TypeCreateDID        = "vcagent.command.did.create"
	TypeIssueCredential  = "vcagent.command.credential.issue"
	TypeStoreCredential  = "vcagent.command.credential.store"
	TypeDeleteCredential = "vcagent.command.credential.delete"
)

type CreateDIDMessage struct {
	Seed     []byte
	Metadata map[string]string
}

func (CreateDIDMessage) Type() string { return TypeCreateDID }

func (m CreateDIDMessage) Validate() error {
	if m.Seed != nil && len(m.Seed) != 32 {
		return commandValidationError("seed", "seed must be 32 bytes when set")
	}
	return nil
}

// IssueCredentialMessage issues a credential and, with Store set, keeps it
// in the holder of the same transaction.
type IssueCredentialMessage struct {
	Request core.IssueRequest
	Store   bool
}

func (IssueCredentialMessage) Type() string { return TypeIssueCredential }

func (m IssueCredentialMessage) Validate() error {
	if strings.TrimSpace(m.Request.IssuerDID) == "" {
		return commandValidationError("issuer_did", "issuer did is required")
	}
	if strings.TrimSpace(m.Request.SubjectDID) == "" {
		return commandValidationError("subject_did", "subject did is required")
	}
	if m.Request.TTL < 0 {
		return commandValidationError("ttl", "ttl must not be negative")
	}
	return nil
}

type StoreCredentialMessage struct {
	Credential core.Credential
}

func (StoreCredentialMessage) Type() string { return TypeStoreCredential }

func (m StoreCredentialMessage) Validate() error {
	if strings.TrimSpace(m.Credential.JWT) == "" {
		return commandValidationError("credential.jwt", "encoded credential is required")
	}
	return nil
}

type DeleteCredentialMessage struct {
	ID string
}

func (DeleteCredentialMessage) Type() string { return TypeDeleteCredential }

func (m DeleteCredentialMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return commandValidationError("id", "credential id is required")
	}
	return nil
}
