package repository

import (
	"context"
	"fmt"
	"sort"

	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/infrastructure/repository/entity"
	"archie-builder-credential-broker/internal/ports"
)

// AppDataRepository stores builder access requests in the app database
type AppDataRepository struct {
	store    ports.DocumentStore
	database string
}

// NewAppDataRepository creates a document store backed access request repository
func NewAppDataRepository(store ports.DocumentStore, database string) *AppDataRepository {
	return &AppDataRepository{
		store:    store,
		database: database,
	}
}

var _ ports.AppDataRepository = (*AppDataRepository)(nil)

// Create writes the record with an empty key so the store mints a fresh one
func (r *AppDataRepository) Create(ctx context.Context, record *domain.AppDataRecord) (string, error) {
	res, err := r.store.WriteByKey(ctx, r.database, AppDataCollection, ports.WriteDocument{
		Value: entity.AppDataDocFromDomain(record),
	}, ports.WriteOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to create app data: %w", err)
	}
	record.Key = res.Key
	return res.Key, nil
}

// GetByKey retrieves a record by its access key
func (r *AppDataRepository) GetByKey(ctx context.Context, key string) (*domain.AppDataRecord, error) {
	docs, err := r.store.Query(ctx, r.database, AppDataCollection, []ports.Filter{ports.Eq(ports.KeyField, key)})
	if err != nil {
		return nil, fmt.Errorf("failed to get app data: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	var doc entity.AppDataDoc
	if err := docs[0].Decode(&doc); err != nil {
		return nil, domain.Upstream("get app data", err)
	}
	return doc.ToDomain(docs[0].Key), nil
}

// ListByShop returns every record of a shop, most recent first
func (r *AppDataRepository) ListByShop(ctx context.Context, shop string) ([]*domain.AppDataRecord, error) {
	docs, err := r.store.Query(ctx, r.database, AppDataCollection, []ports.Filter{ports.Eq("shop", shop)})
	if err != nil {
		return nil, fmt.Errorf("failed to list app data: %w", err)
	}

	records := make([]*domain.AppDataRecord, 0, len(docs))
	for _, d := range docs {
		var doc entity.AppDataDoc
		if err := d.Decode(&doc); err != nil {
			return nil, domain.Upstream("list app data", err)
		}
		records = append(records, doc.ToDomain(d.Key))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Delete removes a record by key
func (r *AppDataRepository) Delete(ctx context.Context, key string) error {
	_, err := r.store.WriteByKey(ctx, r.database, AppDataCollection, ports.WriteDocument{Key: key}, ports.WriteOptions{Delete: true})
	if err != nil {
		return fmt.Errorf("failed to delete app data: %w", err)
	}
	return nil
}
