package query

import (
	"strings"

	"github.com/goliatone/go-vcagent/core"
)

const (
	TypeVerifyCredential = "vcagent.query.credential.verify"
	TypeGetCredential    = "vcagent.query.credential.get"
	TypeFindCredentials  = "vcagent.query.credential.find"
	TypeListDIDs         = "vcagent.query.did.list"
)

type VerifyCredentialMessage struct {
	JWT string
}

func (VerifyCredentialMessage) Type() string { return TypeVerifyCredential }

func (m VerifyCredentialMessage) Validate() error {
	if strings.TrimSpace(m.JWT) == "" {
		return queryValidationError("jwt", "encoded credential is required")
	}
	return nil
}

type GetCredentialMessage struct {
	ID string
}

func (GetCredentialMessage) Type() string { return TypeGetCredential }

func (m GetCredentialMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return queryValidationError("id", "credential id is required")
	}
	return nil
}

type FindCredentialsMessage struct {
	Query core.CredentialQuery
}

func (FindCredentialsMessage) Type() string { return TypeFindCredentials }

func (m FindCredentialsMessage) Validate() error {
	if m.Query.Limit < 0 {
		return queryValidationError("limit", "limit must not be negative")
	}
	return nil
}

type ListDIDsMessage struct{}

func (ListDIDsMessage) Type() string { return TypeListDIDs }
