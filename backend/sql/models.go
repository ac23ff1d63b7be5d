package sqlstore

import (
	"time"

	"github.com/goliatone/go-vcagent/core"
	"github.com/uptrace/bun"
)

type agentRecord struct {
	bun.BaseModel `bun:"table:agent_records,alias:ar"`

	ID         string            `bun:"id,pk"`
	RecordType string            `bun:"record_type,notnull"`
	RecordID   string            `bun:"record_id,notnull"`
	Value      string            `bun:"value,notnull"`
	CreatedAt  time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	Tags       []*agentRecordTag `bun:"rel:has-many,join:id=record_pk"`
}

type agentRecordTag struct {
	bun.BaseModel `bun:"table:agent_record_tags,alias:art"`

	RecordPK string `bun:"record_pk,pk"`
	Name     string `bun:"name,pk"`
	Value    string `bun:"value,notnull"`
}

func newAgentRecord(record core.StorageRecord, now time.Time) *agentRecord {
	return &agentRecord{
		RecordType: record.Type,
		RecordID:   record.ID,
		Value:      record.Value,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func newTagRows(recordPK string, tags map[string]string) []*agentRecordTag {
	rows := make([]*agentRecordTag, 0, len(tags))
	for name, value := range tags {
		rows = append(rows, &agentRecordTag{RecordPK: recordPK, Name: name, Value: value})
	}
	return rows
}

func (r *agentRecord) toDomain() core.StorageRecord {
	if r == nil {
		return core.StorageRecord{}
	}
	record := core.StorageRecord{
		Type:  r.RecordType,
		ID:    r.RecordID,
		Value: r.Value,
	}
	if len(r.Tags) > 0 {
		record.Tags = make(map[string]string, len(r.Tags))
		for _, tag := range r.Tags {
			if tag != nil {
				record.Tags[tag.Name] = tag.Value
			}
		}
	}
	return record
}
