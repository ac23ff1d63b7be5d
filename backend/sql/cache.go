package sqlstore

import (
	"fmt"
	"net/url"
	"strings"
)

const recordCacheKeyPrefix = "go-vcagent::record::v1"

// RecordCacheKey returns the cache key for one record:
// go-vcagent::record::v1::<type>::<id> with each segment URL-path escaped.
func RecordCacheKey(recordType string, id string) (string, error) {
	recordType, id = strings.TrimSpace(recordType), strings.TrimSpace(id)
	if recordType == "" || id == "" {
		return "", fmt.Errorf("sqlstore: record type and id are required")
	}
	return strings.Join([]string{
		recordCacheKeyPrefix,
		url.PathEscape(recordType),
		url.PathEscape(id),
	}, "::"), nil
}
