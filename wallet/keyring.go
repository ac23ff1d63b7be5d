package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/goliatone/go-vcagent/core"
)

const (
	RecordTypeKey = "wallet.key"
	RecordTypeDID = "wallet.did"

	DIDPrefix = "did:sov:"

	metadataTagPrefix = "meta."
	verkeyTag         = "verkey"
)

// Sealer protects private key material at rest. The label identifies the
// record the secret belongs to.
type Sealer interface {
	Seal(ctx context.Context, plaintext []byte, label []byte) ([]byte, error)
	Open(ctx context.Context, sealed []byte, label []byte) ([]byte, error)
}

var SealerCapability = core.DefineCapability[Sealer]("KeySealer")

type keyRecord struct {
	Seed   string `json:"seed"`
	Sealed bool   `json:"sealed,omitempty"`
}

// Keyring is a core.Wallet persisting ed25519 keys and local DIDs through a
// core.Storage.
type Keyring struct {
	storage core.Storage
	sealer  Sealer
	random  io.Reader
}

type Option func(*Keyring)

func WithSealer(sealer Sealer) Option {
	return func(k *Keyring) {
		k.sealer = sealer
	}
}

func WithRandom(random io.Reader) Option {
	return func(k *Keyring) {
		if random != nil {
			k.random = random
		}
	}
}

func NewKeyring(storage core.Storage, opts ...Option) (*Keyring, error) {
	if storage == nil {
		return nil, walletDependencyError("wallet: storage is required")
	}
	keyring := &Keyring{storage: storage, random: rand.Reader}
	for _, opt := range opts {
		if opt != nil {
			opt(keyring)
		}
	}
	return keyring, nil
}

func (k *Keyring) CreateSigningKey(ctx context.Context, seed []byte, metadata map[string]string) (core.KeyInfo, error) {
	seed, err := k.seedOrRandom(seed)
	if err != nil {
		return core.KeyInfo{}, err
	}
	public := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	verkey := EncodeVerkey(public)

	stored, err := k.protect(ctx, seed, verkey)
	if err != nil {
		return core.KeyInfo{}, err
	}
	value, err := json.Marshal(stored)
	if err != nil {
		return core.KeyInfo{}, walletInternalError("wallet: encode key record", err)
	}
	record := core.StorageRecord{
		Type:  RecordTypeKey,
		ID:    verkey,
		Value: string(value),
		Tags:  metadataTags(metadata),
	}
	if err := k.storage.AddRecord(ctx, record); err != nil {
		return core.KeyInfo{}, walletStorageError(err, "wallet: store signing key")
	}
	return core.KeyInfo{Verkey: verkey, Metadata: cloneMetadata(metadata)}, nil
}

func (k *Keyring) GetSigningKey(ctx context.Context, verkey string) (core.KeyInfo, error) {
	verkey = strings.TrimSpace(verkey)
	if verkey == "" {
		return core.KeyInfo{}, walletValidationError("verkey", "verkey is required")
	}
	record, err := k.storage.GetRecord(ctx, RecordTypeKey, verkey)
	if err != nil {
		return core.KeyInfo{}, walletStorageError(err, "wallet: load signing key")
	}
	return core.KeyInfo{Verkey: record.ID, Metadata: metadataFromTags(record.Tags)}, nil
}

// CreateLocalDID creates a key and a DID derived from it. Reusing a seed
// whose key already exists reuses that key.
func (k *Keyring) CreateLocalDID(ctx context.Context, seed []byte, metadata map[string]string) (core.DIDInfo, error) {
	key, err := k.CreateSigningKey(ctx, seed, nil)
	if err != nil {
		if seed == nil || !errors.Is(err, core.ErrDuplicateRecord) {
			return core.DIDInfo{}, err
		}
		public := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
		key = core.KeyInfo{Verkey: EncodeVerkey(public)}
	}
	public, err := DecodeVerkey(key.Verkey)
	if err != nil {
		return core.DIDInfo{}, err
	}
	info := core.DIDInfo{
		DID:      DIDForKey(public),
		Verkey:   key.Verkey,
		Metadata: cloneMetadata(metadata),
	}
	value, err := json.Marshal(info)
	if err != nil {
		return core.DIDInfo{}, walletInternalError("wallet: encode did record", err)
	}
	tags := metadataTags(metadata)
	tags[verkeyTag] = info.Verkey
	if err := k.storage.AddRecord(ctx, core.StorageRecord{
		Type:  RecordTypeDID,
		ID:    info.DID,
		Value: string(value),
		Tags:  tags,
	}); err != nil {
		return core.DIDInfo{}, walletStorageError(err, "wallet: store local did")
	}
	return info, nil
}

func (k *Keyring) GetLocalDID(ctx context.Context, did string) (core.DIDInfo, error) {
	did = strings.TrimSpace(did)
	if did == "" {
		return core.DIDInfo{}, walletValidationError("did", "did is required")
	}
	record, err := k.storage.GetRecord(ctx, RecordTypeDID, did)
	if err != nil {
		return core.DIDInfo{}, walletStorageError(err, "wallet: load local did")
	}
	return decodeDID(record)
}

func (k *Keyring) GetLocalDIDs(ctx context.Context) ([]core.DIDInfo, error) {
	records, err := k.storage.FindRecords(ctx, RecordTypeDID, nil)
	if err != nil {
		return nil, walletStorageError(err, "wallet: list local dids")
	}
	out := make([]core.DIDInfo, 0, len(records))
	for _, record := range records {
		info, err := decodeDID(record)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DID < out[j].DID })
	return out, nil
}

func (k *Keyring) Sign(ctx context.Context, message []byte, verkey string) ([]byte, error) {
	private, err := k.privateKey(ctx, verkey)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(private, message), nil
}

// Verify needs no stored key: the verkey is the public key.
func (k *Keyring) Verify(_ context.Context, message []byte, signature []byte, verkey string) (bool, error) {
	public, err := DecodeVerkey(verkey)
	if err != nil {
		return false, err
	}
	if len(signature) != ed25519.SignatureSize {
		return false, nil
	}
	return ed25519.Verify(public, message, signature), nil
}

func (k *Keyring) privateKey(ctx context.Context, verkey string) (ed25519.PrivateKey, error) {
	verkey = strings.TrimSpace(verkey)
	if verkey == "" {
		return nil, walletValidationError("verkey", "verkey is required")
	}
	record, err := k.storage.GetRecord(ctx, RecordTypeKey, verkey)
	if err != nil {
		return nil, walletStorageError(err, "wallet: load signing key")
	}
	var stored keyRecord
	if err := json.Unmarshal([]byte(record.Value), &stored); err != nil {
		return nil, walletInternalError("wallet: decode key record", err)
	}
	seed, err := k.reveal(ctx, stored, verkey)
	if err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, walletInternalError("wallet: stored seed has wrong size", nil)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func (k *Keyring) seedOrRandom(seed []byte) ([]byte, error) {
	if seed == nil {
		generated := make([]byte, ed25519.SeedSize)
		if _, err := io.ReadFull(k.random, generated); err != nil {
			return nil, walletInternalError("wallet: seed generation failed", err)
		}
		return generated, nil
	}
	if len(seed) != ed25519.SeedSize {
		return nil, walletValidationError("seed", fmt.Sprintf("seed must be %d bytes", ed25519.SeedSize))
	}
	return seed, nil
}

func (k *Keyring) protect(ctx context.Context, seed []byte, verkey string) (keyRecord, error) {
	if k.sealer == nil {
		return keyRecord{Seed: base64.StdEncoding.EncodeToString(seed)}, nil
	}
	sealed, err := k.sealer.Seal(ctx, seed, keyLabel(verkey))
	if err != nil {
		return keyRecord{}, err
	}
	return keyRecord{Seed: base64.StdEncoding.EncodeToString(sealed), Sealed: true}, nil
}

func (k *Keyring) reveal(ctx context.Context, stored keyRecord, verkey string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(stored.Seed)
	if err != nil {
		return nil, walletInternalError("wallet: decode stored seed", err)
	}
	if !stored.Sealed {
		return raw, nil
	}
	if k.sealer == nil {
		return nil, walletDependencyError("wallet: key is sealed but no sealer is configured")
	}
	return k.sealer.Open(ctx, raw, keyLabel(verkey))
}

func keyLabel(verkey string) []byte {
	return []byte(RecordTypeKey + "/" + verkey)
}

func decodeDID(record core.StorageRecord) (core.DIDInfo, error) {
	var info core.DIDInfo
	if err := json.Unmarshal([]byte(record.Value), &info); err != nil {
		return core.DIDInfo{}, walletInternalError("wallet: decode did record", err)
	}
	return info, nil
}

func metadataTags(metadata map[string]string) map[string]string {
	tags := make(map[string]string, len(metadata)+1)
	for key, value := range metadata {
		tags[metadataTagPrefix+key] = value
	}
	return tags
}

func metadataFromTags(tags map[string]string) map[string]string {
	out := map[string]string{}
	for key, value := range tags {
		if name, ok := strings.CutPrefix(key, metadataTagPrefix); ok {
			out[name] = value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cloneMetadata(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for key, value := range metadata {
		out[key] = value
	}
	return out
}
