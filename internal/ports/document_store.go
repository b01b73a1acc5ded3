package ports

import (
	"context"
	"encoding/json"
	"fmt"
)

// AllDatabases asks Query to scan every database
const AllDatabases = "*"

// KeyField is the reserved filter field addressing a document's key
const KeyField = "key"

// Filter operators understood by every DocumentStore driver
const (
	OpEqual        = "=="
	OpNotEqual     = "!="
	OpLess         = "<"
	OpLessEqual    = "<="
	OpGreater      = ">"
	OpGreaterEqual = ">="
	OpIn           = "in"
)

// Filter is one condition of a conjunctive query. Field may be a dot path.
type Filter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Eq builds an equality filter
func Eq(field string, value any) Filter {
	return Filter{Field: field, Operator: OpEqual, Value: value}
}

// Document is a stored document together with where it lives
type Document struct {
	Database   string          `json:"database"`
	Collection string          `json:"collection"`
	Key        string          `json:"key"`
	Value      json.RawMessage `json:"value"`
}

// Decode unmarshals the document value into v
func (d Document) Decode(v any) error {
	if len(d.Value) == 0 {
		return fmt.Errorf("document %s/%s/%s has no value", d.Database, d.Collection, d.Key)
	}
	if err := json.Unmarshal(d.Value, v); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", d.Key, err)
	}
	return nil
}

// WriteDocument is the payload of a write. An empty Key asks the store to mint one.
type WriteDocument struct {
	Key   string
	Value any
}

// WriteOptions modifies a write
type WriteOptions struct {
	Delete bool
}

// WriteResult reports the outcome of a write and the key it applied to
type WriteResult struct {
	Success bool   `json:"success"`
	Key     string `json:"key"`
}

// DocumentStore is the remote business-data store.
// Implementations are safe for concurrent use and never retry on their own;
// every failure matches domain.ErrUpstream.
type DocumentStore interface {
	Query(ctx context.Context, database, collection string, filters []Filter) ([]Document, error)
	WriteByKey(ctx context.Context, database, collection string, doc WriteDocument, opts WriteOptions) (WriteResult, error)
}
