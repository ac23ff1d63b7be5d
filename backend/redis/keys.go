package redisstore

import (
	"net/url"
	"strings"
)

const DefaultKeyPrefix = "vcagent"

// keyspace lays out every key under one prefix:
//
//	<prefix>:record:<type>:<id>         hash {value, tags}
//	<prefix>:type:<type>                set of ids
//	<prefix>:tag:<type>:<name>=<value>  set of ids
type keyspace struct {
	prefix string
}

func newKeyspace(prefix string) keyspace {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return keyspace{prefix: prefix}
}

func (k keyspace) record(recordType string, id string) string {
	return k.join("record", escape(recordType), escape(id))
}

func (k keyspace) typeIndex(recordType string) string {
	return k.join("type", escape(recordType))
}

func (k keyspace) tagIndex(recordType string, name string, value string) string {
	return k.join("tag", escape(recordType), escape(name)+"="+escape(value))
}

func (k keyspace) pattern() string {
	return k.prefix + ":*"
}

func (k keyspace) join(parts ...string) string {
	return k.prefix + ":" + strings.Join(parts, ":")
}

func escape(segment string) string {
	return url.QueryEscape(segment)
}
