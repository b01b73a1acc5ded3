package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/ports"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var mongoOperators = map[string]string{
	ports.OpEqual:        "$eq",
	ports.OpNotEqual:     "$ne",
	ports.OpLess:         "$lt",
	ports.OpLessEqual:    "$lte",
	ports.OpGreater:      "$gt",
	ports.OpGreaterEqual: "$gte",
	ports.OpIn:           "$in",
}

// MongoStore implements DocumentStore on MongoDB.
// Each logical database maps to a Mongo database named prefix+name and
// document keys are stored as _id.
type MongoStore struct {
	client *mongo.Client
	prefix string
}

// NewMongoStore creates a MongoDB backed document store
func NewMongoStore(client *mongo.Client, databasePrefix string) *MongoStore {
	return &MongoStore{
		client: client,
		prefix: databasePrefix,
	}
}

var _ ports.DocumentStore = (*MongoStore)(nil)

// Query finds documents matching every filter
func (s *MongoStore) Query(ctx context.Context, database, collection string, filters []ports.Filter) ([]ports.Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, domain.Upstream("query", err)
	}
	filter, err := toMongoFilter(filters)
	if err != nil {
		return nil, domain.Upstream("query", err)
	}

	databases := []string{database}
	if database == ports.AllDatabases {
		databases, err = s.listDatabases(ctx)
		if err != nil {
			return nil, domain.Upstream("query", err)
		}
	}

	var docs []ports.Document
	for _, name := range databases {
		found, err := s.find(ctx, name, collection, filter)
		if err != nil {
			return nil, domain.Upstream("query", err)
		}
		docs = append(docs, found...)
	}
	return docs, nil
}

func (s *MongoStore) find(ctx context.Context, database, collection string, filter bson.M) ([]ports.Document, error) {
	coll := s.client.Database(s.prefix + database).Collection(collection)
	cursor, err := coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s.%s: %w", database, collection, err)
	}
	defer cursor.Close(ctx)

	var docs []ports.Document
	for cursor.Next(ctx) {
		doc, err := fromMongoDocument(cursor.Current)
		if err != nil {
			return nil, err
		}
		doc.Database = database
		doc.Collection = collection
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return docs, nil
}

func (s *MongoStore) listDatabases(ctx context.Context) ([]string, error) {
	filter := bson.M{}
	if s.prefix != "" {
		filter["name"] = bson.M{"$regex": "^" + regexp.QuoteMeta(s.prefix)}
	}
	names, err := s.client.ListDatabaseNames(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}

	logical := make([]string, 0, len(names))
	for _, name := range names {
		logical = append(logical, name[len(s.prefix):])
	}
	sort.Strings(logical)
	return logical, nil
}

// WriteByKey upserts or deletes a document by key
func (s *MongoStore) WriteByKey(ctx context.Context, database, collection string, doc ports.WriteDocument, opts ports.WriteOptions) (ports.WriteResult, error) {
	if database == "" || database == ports.AllDatabases {
		return ports.WriteResult{}, domain.Upstream("writeByKey", fmt.Errorf("invalid database %q", database))
	}
	coll := s.client.Database(s.prefix + database).Collection(collection)

	if opts.Delete {
		if doc.Key == "" {
			return ports.WriteResult{}, domain.Upstream("writeByKey", fmt.Errorf("delete requires a key"))
		}
		if _, err := coll.DeleteOne(ctx, bson.M{"_id": doc.Key}); err != nil {
			return ports.WriteResult{}, domain.Upstream("writeByKey", fmt.Errorf("failed to delete document: %w", err))
		}
		return ports.WriteResult{Success: true, Key: doc.Key}, nil
	}

	key := doc.Key
	if key == "" {
		key = uuid.NewString()
	}

	fields, err := toMongoDocument(doc.Value)
	if err != nil {
		return ports.WriteResult{}, domain.Upstream("writeByKey", err)
	}
	fields["_id"] = key

	_, err = coll.ReplaceOne(ctx, bson.M{"_id": key}, fields, options.Replace().SetUpsert(true))
	if err != nil {
		return ports.WriteResult{}, domain.Upstream("writeByKey", fmt.Errorf("failed to write document: %w", err))
	}
	return ports.WriteResult{Success: true, Key: key}, nil
}

func toMongoFilter(filters []ports.Filter) (bson.M, error) {
	out := bson.M{}
	for _, f := range filters {
		field := f.Field
		if field == ports.KeyField {
			field = "_id"
		}
		value, err := normalize(f.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid filter value for %s: %w", f.Field, err)
		}

		cond, ok := out[field].(bson.M)
		if !ok {
			cond = bson.M{}
			out[field] = cond
		}
		cond[mongoOperators[f.Operator]] = value
	}
	return out, nil
}

func toMongoDocument(value any) (bson.M, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var fields bson.M
	if err := bson.UnmarshalExtJSON(raw, false, &fields); err != nil {
		return nil, fmt.Errorf("failed to convert document: %w", err)
	}
	if fields == nil {
		fields = bson.M{}
	}
	return fields, nil
}

func fromMongoDocument(raw bson.Raw) (ports.Document, error) {
	idValue := raw.Lookup("_id")
	key, ok := idValue.StringValueOK()
	if !ok {
		oid, isOID := idValue.ObjectIDOK()
		if !isOID {
			return ports.Document{}, fmt.Errorf("document has unsupported _id type %s", idValue.Type)
		}
		key = oid.Hex()
	}

	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return ports.Document{}, fmt.Errorf("failed to decode document %s: %w", key, err)
	}
	delete(fields, "_id")

	value, err := bson.MarshalExtJSON(fields, false, false)
	if err != nil {
		return ports.Document{}, fmt.Errorf("failed to convert document %s: %w", key, err)
	}
	return ports.Document{Key: key, Value: value}, nil
}
