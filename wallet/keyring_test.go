package wallet

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-vcagent/core"
	"github.com/goliatone/go-vcagent/security"
)

type recordStore struct {
	mu      sync.Mutex
	records map[string]core.StorageRecord
}

func newRecordStore() *recordStore {
	return &recordStore{records: map[string]core.StorageRecord{}}
}

func (s *recordStore) AddRecord(_ context.Context, record core.StorageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := record.Type + "/" + record.ID
	if _, ok := s.records[key]; ok {
		return core.ErrDuplicateRecord
	}
	s.records[key] = record
	return nil
}

func (s *recordStore) GetRecord(_ context.Context, recordType string, id string) (core.StorageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[recordType+"/"+id]
	if !ok {
		return core.StorageRecord{}, core.ErrRecordNotFound
	}
	return record, nil
}

func (s *recordStore) UpdateRecord(_ context.Context, record core.StorageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Type+"/"+record.ID] = record
	return nil
}

func (s *recordStore) DeleteRecord(_ context.Context, recordType string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, recordType+"/"+id)
	return nil
}

func (s *recordStore) FindRecords(_ context.Context, recordType string, _ map[string]string) ([]core.StorageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.StorageRecord{}
	for _, record := range s.records {
		if record.Type == recordType {
			out = append(out, record)
		}
	}
	return out, nil
}

func fixedSeed(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func TestKeyring_SignAndVerify(t *testing.T) {
	ctx := context.Background()
	keyring, err := NewKeyring(newRecordStore())
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	key, err := keyring.CreateSigningKey(ctx, nil, map[string]string{"purpose": "test"})
	if err != nil {
		t.Fatalf("create signing key: %v", err)
	}
	message := []byte("hello agent")
	signature, err := keyring.Sign(ctx, message, key.Verkey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := keyring.Verify(ctx, message, signature, key.Verkey)
	if err != nil || !ok {
		t.Fatalf("expected valid signature, got ok=%t err=%v", ok, err)
	}
	ok, err = keyring.Verify(ctx, []byte("tampered"), signature, key.Verkey)
	if err != nil || ok {
		t.Fatalf("expected tampered message to fail, got ok=%t err=%v", ok, err)
	}

	loaded, err := keyring.GetSigningKey(ctx, key.Verkey)
	if err != nil {
		t.Fatalf("get signing key: %v", err)
	}
	if loaded.Metadata["purpose"] != "test" {
		t.Fatalf("expected metadata round trip, got %#v", loaded.Metadata)
	}
}

func TestKeyring_LocalDIDIsDerivedFromVerkey(t *testing.T) {
	ctx := context.Background()
	keyring, _ := NewKeyring(newRecordStore())

	first, err := keyring.CreateLocalDID(ctx, fixedSeed(7), map[string]string{"alias": "issuer"})
	if err != nil {
		t.Fatalf("create local did: %v", err)
	}
	if !strings.HasPrefix(first.DID, DIDPrefix) {
		t.Fatalf("expected %s prefix, got %q", DIDPrefix, first.DID)
	}
	if !DIDMatchesVerkey(first.DID, first.Verkey) {
		t.Fatalf("did %q does not match verkey %q", first.DID, first.Verkey)
	}

	loaded, err := keyring.GetLocalDID(ctx, first.DID)
	if err != nil {
		t.Fatalf("get local did: %v", err)
	}
	if loaded.Verkey != first.Verkey || loaded.Metadata["alias"] != "issuer" {
		t.Fatalf("unexpected did info %#v", loaded)
	}

	if _, err := keyring.CreateLocalDID(ctx, fixedSeed(7), nil); !errors.Is(err, core.ErrDuplicateRecord) {
		t.Fatalf("expected duplicate did to surface ErrDuplicateRecord, got %v", err)
	}

	if _, err := keyring.CreateLocalDID(ctx, fixedSeed(9), nil); err != nil {
		t.Fatalf("create second did: %v", err)
	}
	dids, err := keyring.GetLocalDIDs(ctx)
	if err != nil {
		t.Fatalf("list dids: %v", err)
	}
	if len(dids) != 2 || dids[0].DID > dids[1].DID {
		t.Fatalf("expected two sorted dids, got %#v", dids)
	}
}

func TestKeyring_SealedKeysNeedTheSealer(t *testing.T) {
	ctx := context.Background()
	store := newRecordStore()
	sealer, err := security.NewAppKeySealerFromString("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	sealed, _ := NewKeyring(store, WithSealer(sealer))
	key, err := sealed.CreateSigningKey(ctx, fixedSeed(3), nil)
	if err != nil {
		t.Fatalf("create sealed key: %v", err)
	}
	record, _ := store.GetRecord(ctx, RecordTypeKey, key.Verkey)
	if !strings.Contains(record.Value, `"sealed":true`) {
		t.Fatalf("expected sealed key record, got %s", record.Value)
	}
	if _, err := sealed.Sign(ctx, []byte("m"), key.Verkey); err != nil {
		t.Fatalf("sign with sealer: %v", err)
	}

	plain, _ := NewKeyring(store)
	if _, err := plain.Sign(ctx, []byte("m"), key.Verkey); err == nil {
		t.Fatalf("expected sealed key without sealer to fail")
	}
}

func TestKeyring_ErrorsAreClassified(t *testing.T) {
	ctx := context.Background()
	keyring, _ := NewKeyring(newRecordStore())

	_, err := keyring.CreateSigningKey(ctx, []byte("short"), nil)
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != WalletErrorBadInput {
		t.Fatalf("expected %s, got %v", WalletErrorBadInput, err)
	}

	_, err = keyring.GetLocalDID(ctx, "did:sov:missing")
	if !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if !goerrors.As(err, &rich) || rich.TextCode != WalletErrorNotFound {
		t.Fatalf("expected %s, got %v", WalletErrorNotFound, err)
	}

	if _, err := keyring.Verify(ctx, []byte("m"), []byte("sig"), "not-a-key"); err == nil {
		t.Fatalf("expected malformed verkey to fail")
	}
	if _, err := NewKeyring(nil); err == nil {
		t.Fatalf("expected nil storage to fail")
	}
}

func TestFactory_ResolvesStorageAndSealerFromInjector(t *testing.T) {
	ctx := context.Background()
	injector := core.NewInjector(core.NewSettings(nil))
	store := newRecordStore()
	if err := injector.BindInstance(core.StorageCapability, store); err != nil {
		t.Fatalf("bind storage: %v", err)
	}
	sealer, _ := security.NewAppKeySealerFromString("factory-key")
	if err := injector.BindInstance(SealerCapability, sealer); err != nil {
		t.Fatalf("bind sealer: %v", err)
	}

	registry := core.NewFactoryRegistry()
	if err := Register(registry); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := injector.BindInstance(core.FactoriesCapability, registry); err != nil {
		t.Fatalf("bind factories: %v", err)
	}
	if err := injector.BindProvider(core.WalletCapability, core.NewDeferredClassProvider(FactoryKey)); err != nil {
		t.Fatalf("bind wallet: %v", err)
	}

	wallet, err := core.Resolve[core.Wallet](ctx, injector, core.WalletCapability)
	if err != nil {
		t.Fatalf("resolve wallet: %v", err)
	}
	keyring, ok := wallet.(*Keyring)
	if !ok || keyring.sealer == nil {
		t.Fatalf("expected sealed keyring, got %#v", wallet)
	}
	if err := Register(registry); !errors.Is(err, core.ErrFactoryRegistration) {
		t.Fatalf("expected duplicate registration to fail, got %v", err)
	}
}
