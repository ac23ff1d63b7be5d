package core

import "context"

type timedStorage struct {
	inner Storage
	timer *MethodTimer
}

func newTimedStorage(inner Storage, timer *MethodTimer) Storage {
	return &timedStorage{inner: inner, timer: timer}
}

func (s *timedStorage) AddRecord(ctx context.Context, record StorageRecord) error {
	defer s.timer.Start(ctx, "AddRecord")()
	return s.inner.AddRecord(ctx, record)
}

func (s *timedStorage) GetRecord(ctx context.Context, recordType string, id string) (StorageRecord, error) {
	defer s.timer.Start(ctx, "GetRecord")()
	return s.inner.GetRecord(ctx, recordType, id)
}

func (s *timedStorage) UpdateRecord(ctx context.Context, record StorageRecord) error {
	defer s.timer.Start(ctx, "UpdateRecord")()
	return s.inner.UpdateRecord(ctx, record)
}

func (s *timedStorage) DeleteRecord(ctx context.Context, recordType string, id string) error {
	defer s.timer.Start(ctx, "DeleteRecord")()
	return s.inner.DeleteRecord(ctx, recordType, id)
}

func (s *timedStorage) FindRecords(ctx context.Context, recordType string, tags map[string]string) ([]StorageRecord, error) {
	defer s.timer.Start(ctx, "FindRecords")()
	return s.inner.FindRecords(ctx, recordType, tags)
}

type timedWallet struct {
	inner Wallet
	timer *MethodTimer
}

func newTimedWallet(inner Wallet, timer *MethodTimer) Wallet {
	return &timedWallet{inner: inner, timer: timer}
}

func (w *timedWallet) CreateSigningKey(ctx context.Context, seed []byte, metadata map[string]string) (KeyInfo, error) {
	defer w.timer.Start(ctx, "CreateSigningKey")()
	return w.inner.CreateSigningKey(ctx, seed, metadata)
}

func (w *timedWallet) GetSigningKey(ctx context.Context, verkey string) (KeyInfo, error) {
	defer w.timer.Start(ctx, "GetSigningKey")()
	return w.inner.GetSigningKey(ctx, verkey)
}

func (w *timedWallet) CreateLocalDID(ctx context.Context, seed []byte, metadata map[string]string) (DIDInfo, error) {
	defer w.timer.Start(ctx, "CreateLocalDID")()
	return w.inner.CreateLocalDID(ctx, seed, metadata)
}

func (w *timedWallet) GetLocalDID(ctx context.Context, did string) (DIDInfo, error) {
	defer w.timer.Start(ctx, "GetLocalDID")()
	return w.inner.GetLocalDID(ctx, did)
}

func (w *timedWallet) GetLocalDIDs(ctx context.Context) ([]DIDInfo, error) {
	defer w.timer.Start(ctx, "GetLocalDIDs")()
	return w.inner.GetLocalDIDs(ctx)
}

func (w *timedWallet) Sign(ctx context.Context, message []byte, verkey string) ([]byte, error) {
	defer w.timer.Start(ctx, "Sign")()
	return w.inner.Sign(ctx, message, verkey)
}

func (w *timedWallet) Verify(ctx context.Context, message []byte, signature []byte, verkey string) (bool, error) {
	defer w.timer.Start(ctx, "Verify")()
	return w.inner.Verify(ctx, message, signature, verkey)
}

type timedIssuer struct {
	inner CredentialIssuer
	timer *MethodTimer
}

func newTimedIssuer(inner CredentialIssuer, timer *MethodTimer) CredentialIssuer {
	return &timedIssuer{inner: inner, timer: timer}
}

func (i *timedIssuer) IssueCredential(ctx context.Context, req IssueRequest) (Credential, error) {
	defer i.timer.Start(ctx, "IssueCredential")()
	return i.inner.IssueCredential(ctx, req)
}

type timedVerifier struct {
	inner CredentialVerifier
	timer *MethodTimer
}

func newTimedVerifier(inner CredentialVerifier, timer *MethodTimer) CredentialVerifier {
	return &timedVerifier{inner: inner, timer: timer}
}

func (v *timedVerifier) VerifyCredential(ctx context.Context, encoded string) (VerificationResult, error) {
	defer v.timer.Start(ctx, "VerifyCredential")()
	return v.inner.VerifyCredential(ctx, encoded)
}

type timedHolder struct {
	inner CredentialHolder
	timer *MethodTimer
}

func newTimedHolder(inner CredentialHolder, timer *MethodTimer) CredentialHolder {
	return &timedHolder{inner: inner, timer: timer}
}

func (h *timedHolder) StoreCredential(ctx context.Context, credential Credential) (string, error) {
	defer h.timer.Start(ctx, "StoreCredential")()
	return h.inner.StoreCredential(ctx, credential)
}

func (h *timedHolder) GetCredential(ctx context.Context, id string) (Credential, error) {
	defer h.timer.Start(ctx, "GetCredential")()
	return h.inner.GetCredential(ctx, id)
}

func (h *timedHolder) FindCredentials(ctx context.Context, query CredentialQuery) ([]Credential, error) {
	defer h.timer.Start(ctx, "FindCredentials")()
	return h.inner.FindCredentials(ctx, query)
}

func (h *timedHolder) DeleteCredential(ctx context.Context, id string) error {
	defer h.timer.Start(ctx, "DeleteCredential")()
	return h.inner.DeleteCredential(ctx, id)
}
