package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-vcagent/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Store is a core.Storage over the agent_records tables. Outside a
// transaction every write runs in its own bun transaction and reads go
// through the cache when one is configured. Inside a transaction all
// statements share the session bun.Tx and the cache is bypassed; the keys
// written are invalidated when the transaction commits.
type Store struct {
	db    *bun.DB
	tx    *bun.Tx
	repo  repository.Repository[*agentRecord]
	cache repositorycache.CacheService

	mu      sync.Mutex
	written map[string]struct{}
}

func NewStore(db *bun.DB, cacheService repositorycache.CacheService) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*agentRecord](db, recordHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid record repository wiring: %w", err)
		}
	}
	return &Store{db: db, repo: repo, cache: cacheService}, nil
}

// WithTx returns a Store bound to tx sharing the repository and cache.
func (s *Store) WithTx(tx bun.Tx) *Store {
	return &Store{
		db:      s.db,
		tx:      &tx,
		repo:    s.repo,
		cache:   s.cache,
		written: map[string]struct{}{},
	}
}

func (s *Store) InTransaction() bool {
	return s != nil && s.tx != nil
}

func (s *Store) AddRecord(ctx context.Context, record core.StorageRecord) error {
	record, err := normalizeRecord(record)
	if err != nil {
		return err
	}
	err = s.runInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		existing, err := findRecordTx(ctx, tx, record.Type, record.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return duplicateRecord(record.Type, record.ID)
		}
		row := newAgentRecord(record, time.Now().UTC())
		row.ID = uuid.NewString()
		if _, err := s.repo.CreateTx(ctx, tx, row); err != nil {
			return err
		}
		return insertTags(ctx, tx, row.ID, record.Tags)
	})
	if err != nil {
		return err
	}
	return s.invalidate(ctx, record.Type, record.ID)
}

func (s *Store) GetRecord(ctx context.Context, recordType string, id string) (core.StorageRecord, error) {
	recordType, id = strings.TrimSpace(recordType), strings.TrimSpace(id)
	if s.tx != nil || s.cache == nil {
		return s.fetchRecord(ctx, recordType, id)
	}
	cacheKey, err := RecordCacheKey(recordType, id)
	if err != nil {
		return core.StorageRecord{}, err
	}
	record, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.StorageRecord, error) {
		return s.fetchRecord(ctx, recordType, id)
	})
	if err != nil {
		return core.StorageRecord{}, err
	}
	return cloneRecord(record), nil
}

func (s *Store) UpdateRecord(ctx context.Context, record core.StorageRecord) error {
	record, err := normalizeRecord(record)
	if err != nil {
		return err
	}
	err = s.runInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		existing, err := findRecordTx(ctx, tx, record.Type, record.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return missingRecord(record.Type, record.ID)
		}
		if _, err := tx.NewUpdate().
			Model((*agentRecord)(nil)).
			Set("value = ?", record.Value).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", existing.ID).
			Exec(ctx); err != nil {
			return err
		}
		if err := deleteTags(ctx, tx, existing.ID); err != nil {
			return err
		}
		return insertTags(ctx, tx, existing.ID, record.Tags)
	})
	if err != nil {
		return err
	}
	return s.invalidate(ctx, record.Type, record.ID)
}

func (s *Store) DeleteRecord(ctx context.Context, recordType string, id string) error {
	recordType, id = strings.TrimSpace(recordType), strings.TrimSpace(id)
	err := s.runInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		existing, err := findRecordTx(ctx, tx, recordType, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return missingRecord(recordType, id)
		}
		if err := deleteTags(ctx, tx, existing.ID); err != nil {
			return err
		}
		_, err = tx.NewDelete().
			Model((*agentRecord)(nil)).
			Where("id = ?", existing.ID).
			Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}
	return s.invalidate(ctx, recordType, id)
}

// FindRecords matches every tag by equality, ordered by record id.
func (s *Store) FindRecords(ctx context.Context, recordType string, tags map[string]string) ([]core.StorageRecord, error) {
	var rows []*agentRecord
	query := s.idb().NewSelect().
		Model(&rows).
		Relation("Tags").
		Where("?TableAlias.record_type = ?", strings.TrimSpace(recordType))
	for name, value := range tags {
		query = query.Where(
			"EXISTS (SELECT 1 FROM agent_record_tags AS t WHERE t.record_pk = ?TableAlias.id AND t.name = ? AND t.value = ?)",
			name, value,
		)
	}
	if err := query.OrderExpr("?TableAlias.record_id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.StorageRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Commit commits the bound transaction and then drops the cache entries of
// every record it wrote.
func (s *Store) Commit(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	if err := s.tx.Commit(); err != nil {
		return err
	}
	s.mu.Lock()
	written := s.written
	s.written = map[string]struct{}{}
	s.mu.Unlock()
	if s.cache == nil {
		return nil
	}
	var errs []error
	for key := range written {
		errs = append(errs, s.cache.Delete(ctx, key))
	}
	return errors.Join(errs...)
}

func (s *Store) Rollback(context.Context) error {
	if s.tx == nil {
		return nil
	}
	s.mu.Lock()
	s.written = map[string]struct{}{}
	s.mu.Unlock()
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func (s *Store) idb() bun.IDB {
	if s.tx != nil {
		return *s.tx
	}
	return s.db
}

func (s *Store) runInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	if s.tx != nil {
		return fn(ctx, *s.tx)
	}
	return s.db.RunInTx(ctx, nil, fn)
}

func (s *Store) fetchRecord(ctx context.Context, recordType string, id string) (core.StorageRecord, error) {
	row := &agentRecord{}
	err := s.idb().NewSelect().
		Model(row).
		Relation("Tags").
		Where("?TableAlias.record_type = ?", recordType).
		Where("?TableAlias.record_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.StorageRecord{}, missingRecord(recordType, id)
		}
		return core.StorageRecord{}, err
	}
	return row.toDomain(), nil
}

// invalidate drops the cached copy now, or at commit inside a transaction.
func (s *Store) invalidate(ctx context.Context, recordType string, id string) error {
	if s.cache == nil {
		return nil
	}
	cacheKey, err := RecordCacheKey(recordType, id)
	if err != nil {
		return err
	}
	if s.tx != nil {
		s.mu.Lock()
		s.written[cacheKey] = struct{}{}
		s.mu.Unlock()
		return nil
	}
	return s.cache.Delete(ctx, cacheKey)
}

func findRecordTx(ctx context.Context, tx bun.Tx, recordType string, id string) (*agentRecord, error) {
	row := &agentRecord{}
	err := tx.NewSelect().
		Model(row).
		Where("?TableAlias.record_type = ?", recordType).
		Where("?TableAlias.record_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}

func insertTags(ctx context.Context, tx bun.Tx, recordPK string, tags map[string]string) error {
	if len(tags) == 0 {
		return nil
	}
	rows := newTagRows(recordPK, tags)
	_, err := tx.NewInsert().Model(&rows).Exec(ctx)
	return err
}

func deleteTags(ctx context.Context, tx bun.Tx, recordPK string) error {
	_, err := tx.NewDelete().
		Model((*agentRecordTag)(nil)).
		Where("record_pk = ?", recordPK).
		Exec(ctx)
	return err
}

func normalizeRecord(record core.StorageRecord) (core.StorageRecord, error) {
	record.Type = strings.TrimSpace(record.Type)
	record.ID = strings.TrimSpace(record.ID)
	if record.Type == "" || record.ID == "" {
		return core.StorageRecord{}, fmt.Errorf("sqlstore: record type and id are required")
	}
	return record, nil
}

func cloneRecord(record core.StorageRecord) core.StorageRecord {
	if record.Tags != nil {
		record.Tags = maps.Clone(record.Tags)
	}
	return record
}

func missingRecord(recordType string, id string) error {
	return fmt.Errorf("sqlstore: %s/%s: %w", recordType, id, core.ErrRecordNotFound)
}

func duplicateRecord(recordType string, id string) error {
	return fmt.Errorf("sqlstore: %s/%s: %w", recordType, id, core.ErrDuplicateRecord)
}

var _ core.Storage = (*Store)(nil)
