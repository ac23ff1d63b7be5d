package vcagent

import (
	"fmt"

	vccommand "github.com/goliatone/go-vcagent/command"
	"github.com/goliatone/go-vcagent/core"
	vcquery "github.com/goliatone/go-vcagent/query"
)

type Commands struct {
	CreateDID        *vccommand.CreateDIDCommand
	IssueCredential  *vccommand.IssueCredentialCommand
	StoreCredential  *vccommand.StoreCredentialCommand
	DeleteCredential *vccommand.DeleteCredentialCommand
}

type Queries struct {
	VerifyCredential *vcquery.VerifyCredentialQuery
	GetCredential    *vcquery.GetCredentialQuery
	FindCredentials  *vcquery.FindCredentialsQuery
	ListDIDs         *vcquery.ListDIDsQuery
}

// Facade groups the command and query handlers of one profile.
type Facade struct {
	profile  core.Profile
	commands Commands
	queries  Queries
}

func NewFacade(profile core.Profile) (*Facade, error) {
	if profile == nil {
		return nil, fmt.Errorf("vcagent: profile is required")
	}
	return &Facade{
		profile: profile,
		commands: Commands{
			CreateDID:        vccommand.NewCreateDIDCommand(profile),
			IssueCredential:  vccommand.NewIssueCredentialCommand(profile),
			StoreCredential:  vccommand.NewStoreCredentialCommand(profile),
			DeleteCredential: vccommand.NewDeleteCredentialCommand(profile),
		},
		queries: Queries{
			VerifyCredential: vcquery.NewVerifyCredentialQuery(profile),
			GetCredential:    vcquery.NewGetCredentialQuery(profile),
			FindCredentials:  vcquery.NewFindCredentialsQuery(profile),
			ListDIDs:         vcquery.NewListDIDsQuery(profile),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Profile() core.Profile {
	if f == nil {
		return nil
	}
	return f.profile
}
