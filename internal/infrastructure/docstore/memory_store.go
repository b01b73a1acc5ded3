package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/ports"

	"github.com/google/uuid"
)

// MemoryStore is an in-process DocumentStore for tests and local development
type MemoryStore struct {
	mu        sync.RWMutex
	databases map[string]map[string]map[string]json.RawMessage
}

// NewMemoryStore creates an empty in-memory document store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		databases: make(map[string]map[string]map[string]json.RawMessage),
	}
}

var _ ports.DocumentStore = (*MemoryStore)(nil)

// Query returns the documents matching every filter, ordered by database then key
func (s *MemoryStore) Query(ctx context.Context, database, collection string, filters []ports.Filter) ([]ports.Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, domain.Upstream("query", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var dbNames []string
	if database == ports.AllDatabases {
		for name := range s.databases {
			dbNames = append(dbNames, name)
		}
		sort.Strings(dbNames)
	} else {
		dbNames = []string{database}
	}

	var docs []ports.Document
	for _, dbName := range dbNames {
		coll := s.databases[dbName][collection]
		keys := make([]string, 0, len(coll))
		for key := range coll {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			raw := coll[key]
			var decoded map[string]any
			if err := json.Unmarshal(raw, &decoded); err != nil {
				return nil, domain.Upstream("query", fmt.Errorf("corrupt document %s: %w", key, err))
			}
			ok, err := matchesAll(key, decoded, filters)
			if err != nil {
				return nil, domain.Upstream("query", err)
			}
			if ok {
				docs = append(docs, ports.Document{
					Database:   dbName,
					Collection: collection,
					Key:        key,
					Value:      append(json.RawMessage(nil), raw...),
				})
			}
		}
	}
	return docs, nil
}

// WriteByKey upserts or deletes a document
func (s *MemoryStore) WriteByKey(ctx context.Context, database, collection string, doc ports.WriteDocument, opts ports.WriteOptions) (ports.WriteResult, error) {
	if database == "" || database == ports.AllDatabases {
		return ports.WriteResult{}, domain.Upstream("writeByKey", fmt.Errorf("invalid database %q", database))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if opts.Delete {
		if doc.Key == "" {
			return ports.WriteResult{}, domain.Upstream("writeByKey", fmt.Errorf("delete requires a key"))
		}
		delete(s.databases[database][collection], doc.Key)
		return ports.WriteResult{Success: true, Key: doc.Key}, nil
	}

	raw, err := json.Marshal(doc.Value)
	if err != nil {
		return ports.WriteResult{}, domain.Upstream("writeByKey", fmt.Errorf("failed to encode document: %w", err))
	}

	key := doc.Key
	if key == "" {
		key = uuid.NewString()
	}

	if s.databases[database] == nil {
		s.databases[database] = make(map[string]map[string]json.RawMessage)
	}
	if s.databases[database][collection] == nil {
		s.databases[database][collection] = make(map[string]json.RawMessage)
	}
	s.databases[database][collection][key] = raw

	return ports.WriteResult{Success: true, Key: key}, nil
}

// Count returns the number of documents in a collection
func (s *MemoryStore) Count(database, collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.databases[database][collection])
}
