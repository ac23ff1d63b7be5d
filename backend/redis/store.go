package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-vcagent/core"
	"github.com/redis/go-redis/v9"
)

const (
	fieldValue = "value"
	fieldTags  = "tags"

	// maxWatchRetries bounds optimistic retries when a watched record key
	// changes between read and write.
	maxWatchRetries = 5
)

// Store is a core.Storage over plain redis keys. Each write is applied
// atomically with WATCH/MULTI but there are no multi-operation
// transactions.
type Store struct {
	client *redis.Client
	keys   keyspace
}

type Option func(*Store)

func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.keys = newKeyspace(prefix)
	}
}

func NewStore(client *redis.Client, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redisstore: client is required")
	}
	store := &Store{client: client, keys: newKeyspace("")}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *Store) AddRecord(ctx context.Context, record core.StorageRecord) error {
	record, err := normalizeRecord(record)
	if err != nil {
		return err
	}
	key := s.keys.record(record.Type, record.ID)
	return s.watch(ctx, key, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return duplicateRecord(record.Type, record.ID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return s.write(ctx, pipe, record, nil)
		})
		return err
	})
}

func (s *Store) GetRecord(ctx context.Context, recordType string, id string) (core.StorageRecord, error) {
	recordType, id = strings.TrimSpace(recordType), strings.TrimSpace(id)
	fields, err := s.client.HGetAll(ctx, s.keys.record(recordType, id)).Result()
	if err != nil {
		return core.StorageRecord{}, err
	}
	if len(fields) == 0 {
		return core.StorageRecord{}, missingRecord(recordType, id)
	}
	return decodeRecord(recordType, id, fields)
}

func (s *Store) UpdateRecord(ctx context.Context, record core.StorageRecord) error {
	record, err := normalizeRecord(record)
	if err != nil {
		return err
	}
	key := s.keys.record(record.Type, record.ID)
	return s.watch(ctx, key, func(tx *redis.Tx) error {
		previous, err := s.readTags(ctx, tx, record.Type, record.ID)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return s.write(ctx, pipe, record, previous)
		})
		return err
	})
}

func (s *Store) DeleteRecord(ctx context.Context, recordType string, id string) error {
	recordType, id = strings.TrimSpace(recordType), strings.TrimSpace(id)
	key := s.keys.record(recordType, id)
	return s.watch(ctx, key, func(tx *redis.Tx) error {
		previous, err := s.readTags(ctx, tx, recordType, id)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, s.keys.typeIndex(recordType), id)
			for name, value := range previous {
				pipe.SRem(ctx, s.keys.tagIndex(recordType, name, value), id)
			}
			return nil
		})
		return err
	})
}

// FindRecords intersects the type index with one index per tag, then loads
// the matching hashes in one pipeline. Results are ordered by id.
func (s *Store) FindRecords(ctx context.Context, recordType string, tags map[string]string) ([]core.StorageRecord, error) {
	recordType = strings.TrimSpace(recordType)
	indexes := []string{s.keys.typeIndex(recordType)}
	for name, value := range tags {
		indexes = append(indexes, s.keys.tagIndex(recordType, name, value))
	}
	ids, err := s.client.SInter(ctx, indexes...).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return []core.StorageRecord{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.keys.record(recordType, id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]core.StorageRecord, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// deleted between SINTER and HGETALL
			continue
		}
		record, err := decodeRecord(recordType, ids[i], fields)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

// Flush removes every key under the store prefix.
func (s *Store) Flush(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.keys.pattern(), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *Store) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	var err error
	for range maxWatchRetries {
		err = s.client.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("redisstore: %s: concurrent modification: %w", key, err)
}

// readTags returns the stored tags of an existing record or a not-found
// error.
func (s *Store) readTags(ctx context.Context, tx *redis.Tx, recordType string, id string) (map[string]string, error) {
	fields, err := tx.HGetAll(ctx, s.keys.record(recordType, id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, missingRecord(recordType, id)
	}
	record, err := decodeRecord(recordType, id, fields)
	if err != nil {
		return nil, err
	}
	return record.Tags, nil
}

func (s *Store) write(ctx context.Context, pipe redis.Pipeliner, record core.StorageRecord, previous map[string]string) error {
	tags, err := json.Marshal(record.Tags)
	if err != nil {
		return fmt.Errorf("redisstore: encode tags: %w", err)
	}
	pipe.HSet(ctx, s.keys.record(record.Type, record.ID), fieldValue, record.Value, fieldTags, string(tags))
	pipe.SAdd(ctx, s.keys.typeIndex(record.Type), record.ID)
	for name, value := range previous {
		if current, ok := record.Tags[name]; ok && current == value {
			continue
		}
		pipe.SRem(ctx, s.keys.tagIndex(record.Type, name, value), record.ID)
	}
	for name, value := range record.Tags {
		pipe.SAdd(ctx, s.keys.tagIndex(record.Type, name, value), record.ID)
	}
	return nil
}

func decodeRecord(recordType string, id string, fields map[string]string) (core.StorageRecord, error) {
	record := core.StorageRecord{Type: recordType, ID: id, Value: fields[fieldValue]}
	if raw := fields[fieldTags]; raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &record.Tags); err != nil {
			return core.StorageRecord{}, fmt.Errorf("redisstore: decode tags of %s/%s: %w", recordType, id, err)
		}
	}
	return record, nil
}

func normalizeRecord(record core.StorageRecord) (core.StorageRecord, error) {
	record.Type = strings.TrimSpace(record.Type)
	record.ID = strings.TrimSpace(record.ID)
	if record.Type == "" || record.ID == "" {
		return core.StorageRecord{}, fmt.Errorf("redisstore: record type and id are required")
	}
	return record, nil
}

func missingRecord(recordType string, id string) error {
	return fmt.Errorf("redisstore: %s/%s: %w", recordType, id, core.ErrRecordNotFound)
}

func duplicateRecord(recordType string, id string) error {
	return fmt.Errorf("redisstore: %s/%s: %w", recordType, id, core.ErrDuplicateRecord)
}

var _ core.Storage = (*Store)(nil)
