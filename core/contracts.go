package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// StorageRecord is the unit persisted by every Storage backend.
type StorageRecord struct {
	Type  string            `json:"type"`
	ID    string            `json:"id"`
	Value string            `json:"value"`
	Tags  map[string]string `json:"tags,omitempty"`
}

type Storage interface {
	AddRecord(ctx context.Context, record StorageRecord) error
	GetRecord(ctx context.Context, recordType string, id string) (StorageRecord, error)
	UpdateRecord(ctx context.Context, record StorageRecord) error
	DeleteRecord(ctx context.Context, recordType string, id string) error
	FindRecords(ctx context.Context, recordType string, tags map[string]string) ([]StorageRecord, error)
}

type KeyInfo struct {
	Verkey   string            `json:"verkey"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type DIDInfo struct {
	DID      string            `json:"did"`
	Verkey   string            `json:"verkey"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Wallet manages signing keys and local DIDs. A nil seed generates fresh
// key material.
type Wallet interface {
	CreateSigningKey(ctx context.Context, seed []byte, metadata map[string]string) (KeyInfo, error)
	GetSigningKey(ctx context.Context, verkey string) (KeyInfo, error)
	CreateLocalDID(ctx context.Context, seed []byte, metadata map[string]string) (DIDInfo, error)
	GetLocalDID(ctx context.Context, did string) (DIDInfo, error)
	GetLocalDIDs(ctx context.Context) ([]DIDInfo, error)
	Sign(ctx context.Context, message []byte, verkey string) ([]byte, error)
	Verify(ctx context.Context, message []byte, signature []byte, verkey string) (bool, error)
}

type Credential struct {
	ID        string         `json:"id"`
	Issuer    string         `json:"issuer"`
	Subject   string         `json:"subject"`
	Types     []string       `json:"types"`
	Claims    map[string]any `json:"claims,omitempty"`
	IssuedAt  time.Time      `json:"issued_at"`
	ExpiresAt time.Time      `json:"expires_at,omitzero"`
	JWT       string         `json:"jwt"`
}

type IssueRequest struct {
	ID         string
	IssuerDID  string
	SubjectDID string
	Types      []string
	Claims     map[string]any
	TTL        time.Duration
}

type VerificationResult struct {
	Verified   bool       `json:"verified"`
	Credential Credential `json:"credential"`
	Reason     string     `json:"reason,omitempty"`
}

type CredentialQuery struct {
	Issuer  string
	Subject string
	Type    string
	Limit   int
}

type CredentialIssuer interface {
	IssueCredential(ctx context.Context, req IssueRequest) (Credential, error)
}

type CredentialVerifier interface {
	VerifyCredential(ctx context.Context, encoded string) (VerificationResult, error)
}

type CredentialHolder interface {
	StoreCredential(ctx context.Context, credential Credential) (string, error)
	GetCredential(ctx context.Context, id string) (Credential, error)
	FindCredentials(ctx context.Context, query CredentialQuery) ([]Credential, error)
	DeleteCredential(ctx context.Context, id string) error
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

var (
	StorageCapability  = DefineCapability[Storage]("Storage", WithInstrumenter(InstrumentWith(newTimedStorage)))
	WalletCapability   = DefineCapability[Wallet]("Wallet", WithInstrumenter(InstrumentWith(newTimedWallet)))
	IssuerCapability   = DefineCapability[CredentialIssuer]("CredentialIssuer", WithInstrumenter(InstrumentWith(newTimedIssuer)))
	VerifierCapability = DefineCapability[CredentialVerifier]("CredentialVerifier", WithInstrumenter(InstrumentWith(newTimedVerifier)))
	HolderCapability   = DefineCapability[CredentialHolder]("CredentialHolder", WithInstrumenter(InstrumentWith(newTimedHolder)))

	CollectorCapability = DefineCapability[TimingRecorder]("TimingCollector")
	FactoriesCapability = DefineCapability[*FactoryRegistry]("Factories")
	MetricsCapability   = DefineCapability[MetricsRecorder]("Metrics")
)

// SessionCapabilities are the roles a backend binds for every session, in
// binding order.
func SessionCapabilities() []Capability {
	return []Capability{
		StorageCapability,
		WalletCapability,
		IssuerCapability,
		VerifierCapability,
		HolderCapability,
	}
}
