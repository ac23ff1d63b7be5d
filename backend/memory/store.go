// Package memory is the in-memory backend. Its transactions stage writes in
// an overlay that is applied to the shared store on commit and dropped on
// rollback.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-vcagent/core"
)

type recordKey struct {
	recordType string
	id         string
}

func keyOf(recordType string, id string) recordKey {
	return recordKey{recordType: strings.TrimSpace(recordType), id: strings.TrimSpace(id)}
}

// Store is the committed state shared by every session of a profile.
type Store struct {
	mu      sync.RWMutex
	records map[recordKey]core.StorageRecord
}

func NewStore() *Store {
	return &Store{records: map[recordKey]core.StorageRecord{}}
}

func (s *Store) AddRecord(_ context.Context, record core.StorageRecord) error {
	key, err := validateRecord(record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[key]; exists {
		return duplicateRecord(key)
	}
	s.records[key] = cloneRecord(record)
	return nil
}

func (s *Store) GetRecord(_ context.Context, recordType string, id string) (core.StorageRecord, error) {
	key := keyOf(recordType, id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[key]
	if !ok {
		return core.StorageRecord{}, missingRecord(key)
	}
	return cloneRecord(record), nil
}

func (s *Store) UpdateRecord(_ context.Context, record core.StorageRecord) error {
	key, err := validateRecord(record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[key]; !exists {
		return missingRecord(key)
	}
	s.records[key] = cloneRecord(record)
	return nil
}

func (s *Store) DeleteRecord(_ context.Context, recordType string, id string) error {
	key := keyOf(recordType, id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[key]; !exists {
		return missingRecord(key)
	}
	delete(s.records, key)
	return nil
}

func (s *Store) FindRecords(_ context.Context, recordType string, tags map[string]string) ([]core.StorageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return matchRecords(s.records, nil, strings.TrimSpace(recordType), tags), nil
}

// Len reports the number of committed records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// matchRecords filters base overlaid with staged. A nil staged record marks
// a deletion. Results are ordered by id.
func matchRecords(base map[recordKey]core.StorageRecord, staged map[recordKey]*stagedRecord, recordType string, tags map[string]string) []core.StorageRecord {
	out := []core.StorageRecord{}
	seen := map[recordKey]bool{}
	for key, change := range staged {
		seen[key] = true
		if change.deleted || key.recordType != recordType || !tagsMatch(change.record.Tags, tags) {
			continue
		}
		out = append(out, cloneRecord(change.record))
	}
	for key, record := range base {
		if seen[key] || key.recordType != recordType || !tagsMatch(record.Tags, tags) {
			continue
		}
		out = append(out, cloneRecord(record))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func tagsMatch(have map[string]string, want map[string]string) bool {
	for key, value := range want {
		if have[key] != value {
			return false
		}
	}
	return true
}

func validateRecord(record core.StorageRecord) (recordKey, error) {
	key := keyOf(record.Type, record.ID)
	if key.recordType == "" || key.id == "" {
		return recordKey{}, fmt.Errorf("memory: record type and id are required")
	}
	return key, nil
}

func cloneRecord(record core.StorageRecord) core.StorageRecord {
	record.Type = strings.TrimSpace(record.Type)
	record.ID = strings.TrimSpace(record.ID)
	if record.Tags != nil {
		record.Tags = maps.Clone(record.Tags)
	}
	return record
}

func missingRecord(key recordKey) error {
	return fmt.Errorf("memory: %s/%s: %w", key.recordType, key.id, core.ErrRecordNotFound)
}

func duplicateRecord(key recordKey) error {
	return fmt.Errorf("memory: %s/%s: %w", key.recordType, key.id, core.ErrDuplicateRecord)
}

var _ core.Storage = (*Store)(nil)
