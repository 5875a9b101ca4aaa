package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sort"

	"github.com/siherrmann/memories/helper"
)

// Link attribute keys set by the linkers and the review import.
const (
	LinkWikidata    = "wikidata"
	LinkAdamlink    = "adamlink"
	LinkPrefLabel   = "preflabel"
	LinkGTAASubject = "gtaa_subject"
	LinkLongitude   = "longitude"
	LinkLatitude    = "latitude"
)

// Links maps link attribute names to external identifiers or labels.
// It is stored as JSONB in PostgreSQL.
type Links map[string]string

// Get returns the value for key, or "" if the key is absent.
func (l Links) Get(key string) string {
	if l == nil {
		return ""
	}
	return l[key]
}

// Keys returns the populated keys in sorted order.
func (l Links) Keys() []string {
	keys := make([]string, 0, len(l))
	for k, v := range l {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Value implements the driver.Valuer interface for database storage
func (l Links) Value() (driver.Value, error) {
	if l == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface for database retrieval
func (l *Links) Scan(value interface{}) error {
	if value == nil {
		*l = Links{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return helper.NewError("byte assertion", errors.New("type assertion to []byte failed"))
	}

	return json.Unmarshal(b, l)
}
