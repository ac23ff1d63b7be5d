package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-vcagent/core"
)

// ErrTxnDone is a core.ErrMisuse: the transaction was committed, rolled back
// or released with its session.
var ErrTxnDone error = core.NewError(core.ErrMisuse, "", "memory transaction already finished", nil)

type stagedRecord struct {
	record  core.StorageRecord
	deleted bool
	// created marks records that did not exist when staged; commit fails if
	// another transaction created them first.
	created bool
}

// Txn is a Storage that stages writes against a Store. Reads see staged
// changes first. Nothing reaches the Store until Commit.
type Txn struct {
	store  *Store
	mu     sync.Mutex
	staged map[recordKey]*stagedRecord
	done   bool
}

func (s *Store) Begin() *Txn {
	return &Txn{store: s, staged: map[recordKey]*stagedRecord{}}
}

func (t *Txn) AddRecord(ctx context.Context, record core.StorageRecord) error {
	key, err := validateRecord(record)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxnDone
	}
	if _, exists, err := t.lookup(ctx, key); err != nil {
		return err
	} else if exists {
		return duplicateRecord(key)
	}
	// Anything still staged here is a deletion being replaced.
	_, replacing := t.staged[key]
	t.staged[key] = &stagedRecord{record: cloneRecord(record), created: !replacing}
	return nil
}

func (t *Txn) GetRecord(ctx context.Context, recordType string, id string) (core.StorageRecord, error) {
	key := keyOf(recordType, id)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return core.StorageRecord{}, ErrTxnDone
	}
	record, exists, err := t.lookup(ctx, key)
	if err != nil {
		return core.StorageRecord{}, err
	}
	if !exists {
		return core.StorageRecord{}, missingRecord(key)
	}
	return record, nil
}

func (t *Txn) UpdateRecord(ctx context.Context, record core.StorageRecord) error {
	key, err := validateRecord(record)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxnDone
	}
	if _, exists, err := t.lookup(ctx, key); err != nil {
		return err
	} else if !exists {
		return missingRecord(key)
	}
	created := false
	if prior, ok := t.staged[key]; ok {
		created = prior.created
	}
	t.staged[key] = &stagedRecord{record: cloneRecord(record), created: created}
	return nil
}

func (t *Txn) DeleteRecord(ctx context.Context, recordType string, id string) error {
	key := keyOf(recordType, id)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxnDone
	}
	if _, exists, err := t.lookup(ctx, key); err != nil {
		return err
	} else if !exists {
		return missingRecord(key)
	}
	if prior, ok := t.staged[key]; ok && prior.created {
		delete(t.staged, key)
		return nil
	}
	t.staged[key] = &stagedRecord{deleted: true}
	return nil
}

func (t *Txn) FindRecords(_ context.Context, recordType string, tags map[string]string) ([]core.StorageRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, ErrTxnDone
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return matchRecords(t.store.records, t.staged, strings.TrimSpace(recordType), tags), nil
}

// Commit applies every staged change atomically. A record created by this
// transaction that another commit created meanwhile fails the whole commit
// and nothing is applied.
func (t *Txn) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxnDone
	}
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for key, change := range t.staged {
		if _, exists := t.store.records[key]; change.created && exists {
			return fmt.Errorf("memory: commit conflict: %w", duplicateRecord(key))
		}
	}
	for key, change := range t.staged {
		if change.deleted {
			delete(t.store.records, key)
			continue
		}
		t.store.records[key] = change.record
	}
	t.staged = nil
	return nil
}

func (t *Txn) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxnDone
	}
	t.done = true
	t.staged = nil
	return nil
}

// Pending reports the number of staged changes.
func (t *Txn) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.staged)
}

func (t *Txn) lookup(ctx context.Context, key recordKey) (core.StorageRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return core.StorageRecord{}, false, err
	}
	if change, ok := t.staged[key]; ok {
		if change.deleted {
			return core.StorageRecord{}, false, nil
		}
		return cloneRecord(change.record), true, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	record, ok := t.store.records[key]
	if !ok {
		return core.StorageRecord{}, false, nil
	}
	return cloneRecord(record), true, nil
}

var _ core.Storage = (*Txn)(nil)
