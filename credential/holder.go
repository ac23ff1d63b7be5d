package credential

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/goliatone/go-vcagent/core"
	"github.com/google/uuid"
)

const (
	RecordTypeCredential = "credential"

	issuerTag     = "issuer"
	subjectTag    = "subject"
	typeTagPrefix = "type:"
)

// Holder keeps received credentials in the session Storage. Records are
// tagged by issuer, subject and each credential type so FindCredentials can
// filter through the storage tag query.
type Holder struct {
	storage core.Storage
}

func NewHolder(storage core.Storage) (*Holder, error) {
	if storage == nil {
		return nil, credentialInternalError("credential: holder storage is required", nil)
	}
	return &Holder{storage: storage}, nil
}

func (h *Holder) StoreCredential(ctx context.Context, credential core.Credential) (string, error) {
	if strings.TrimSpace(credential.JWT) == "" && strings.TrimSpace(credential.Issuer) == "" {
		return "", credentialValidationError("credential", "credential has neither jwt nor issuer")
	}
	credential.ID = strings.TrimSpace(credential.ID)
	if credential.ID == "" {
		credential.ID = "urn:uuid:" + uuid.NewString()
	}
	value, err := json.Marshal(credential)
	if err != nil {
		return "", credentialInternalError("credential: encode credential", err)
	}
	if err := h.storage.AddRecord(ctx, core.StorageRecord{
		Type:  RecordTypeCredential,
		ID:    credential.ID,
		Value: string(value),
		Tags:  credentialTags(credential),
	}); err != nil {
		return "", credentialStorageError(err, "credential: store credential")
	}
	return credential.ID, nil
}

func (h *Holder) GetCredential(ctx context.Context, id string) (core.Credential, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Credential{}, credentialValidationError("id", "credential id is required")
	}
	record, err := h.storage.GetRecord(ctx, RecordTypeCredential, id)
	if err != nil {
		return core.Credential{}, credentialStorageError(err, "credential: load credential")
	}
	return decodeCredential(record)
}

// FindCredentials returns matches ordered by issue time, then id.
func (h *Holder) FindCredentials(ctx context.Context, query core.CredentialQuery) ([]core.Credential, error) {
	if query.Limit < 0 {
		return nil, credentialValidationError("limit", "limit must not be negative")
	}
	records, err := h.storage.FindRecords(ctx, RecordTypeCredential, queryTags(query))
	if err != nil {
		return nil, credentialStorageError(err, "credential: find credentials")
	}
	out := make([]core.Credential, 0, len(records))
	for _, record := range records {
		credential, err := decodeCredential(record)
		if err != nil {
			return nil, err
		}
		out = append(out, credential)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].IssuedAt.Before(out[j].IssuedAt)
		}
		return out[i].ID < out[j].ID
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (h *Holder) DeleteCredential(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return credentialValidationError("id", "credential id is required")
	}
	if err := h.storage.DeleteRecord(ctx, RecordTypeCredential, id); err != nil {
		return credentialStorageError(err, "credential: delete credential")
	}
	return nil
}

func credentialTags(credential core.Credential) map[string]string {
	tags := map[string]string{}
	if issuer := strings.TrimSpace(credential.Issuer); issuer != "" {
		tags[issuerTag] = issuer
	}
	if subject := strings.TrimSpace(credential.Subject); subject != "" {
		tags[subjectTag] = subject
	}
	for _, value := range credential.Types {
		if value = strings.TrimSpace(value); value != "" {
			tags[typeTagPrefix+value] = "1"
		}
	}
	return tags
}

func queryTags(query core.CredentialQuery) map[string]string {
	tags := map[string]string{}
	if issuer := strings.TrimSpace(query.Issuer); issuer != "" {
		tags[issuerTag] = issuer
	}
	if subject := strings.TrimSpace(query.Subject); subject != "" {
		tags[subjectTag] = subject
	}
	if value := strings.TrimSpace(query.Type); value != "" {
		tags[typeTagPrefix+value] = "1"
	}
	return tags
}

func decodeCredential(record core.StorageRecord) (core.Credential, error) {
	var credential core.Credential
	if err := json.Unmarshal([]byte(record.Value), &credential); err != nil {
		return core.Credential{}, credentialInternalError("credential: decode credential", err)
	}
	return credential, nil
}

var _ core.CredentialHolder = (*Holder)(nil)
