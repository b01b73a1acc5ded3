package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/infrastructure/repository/entity"
	"archie-builder-credential-broker/internal/ports"

	"github.com/rs/zerolog"
)

// StoreMetadataRepository reads and writes StoreData.metadata in project databases
type StoreMetadataRepository struct {
	store  ports.DocumentStore
	logger zerolog.Logger
}

// NewStoreMetadataRepository creates a plan metadata repository
func NewStoreMetadataRepository(store ports.DocumentStore, logger zerolog.Logger) *StoreMetadataRepository {
	return &StoreMetadataRepository{
		store:  store,
		logger: logger,
	}
}

var (
	_ ports.StoreMetadataRepository = (*StoreMetadataRepository)(nil)
	_ ports.ProjectLocator          = (*StoreMetadataRepository)(nil)
)

// Load reads the metadata singleton of a project database
func (r *StoreMetadataRepository) Load(ctx context.Context, dbName string) (*domain.StorePlanMetadata, error) {
	doc, err := r.loadRaw(ctx, dbName)
	if err != nil || doc == nil {
		return nil, err
	}

	var meta entity.StoreMetadataDoc
	if err := doc.Decode(&meta); err != nil {
		return nil, domain.Upstream("load store metadata", err)
	}
	return meta.ToDomain(), nil
}

// SavePlan sets paymentPlan on the metadata document, keeping every other field
func (r *StoreMetadataRepository) SavePlan(ctx context.Context, dbName string, plan domain.Plan) error {
	doc, err := r.loadRaw(ctx, dbName)
	if err != nil {
		return err
	}

	fields := map[string]json.RawMessage{}
	if doc != nil {
		if err := doc.Decode(&fields); err != nil {
			return domain.Upstream("save plan", err)
		}
	}
	encoded, err := json.Marshal(string(plan))
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	fields["paymentPlan"] = encoded

	_, err = r.store.WriteByKey(ctx, dbName, StoreDataCollection, ports.WriteDocument{
		Key:   MetadataKey,
		Value: fields,
	}, ports.WriteOptions{})
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}

	r.logger.Info().Str("dbName", dbName).Str("plan", string(plan)).Msg("Store plan metadata saved")
	return nil
}

// FindByShop scans every database for the metadata document bound to shop
func (r *StoreMetadataRepository) FindByShop(ctx context.Context, shop string) (*domain.Project, error) {
	docs, err := r.store.Query(ctx, ports.AllDatabases, StoreDataCollection, []ports.Filter{
		ports.Eq(ports.KeyField, MetadataKey),
		ports.Eq("ecommerce.platform", domain.EcomPlatformShopify),
		ports.Eq("ecommerce.shop", shop),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	if len(docs) > 1 {
		r.logger.Warn().
			Str("shop", shop).
			Int("matches", len(docs)).
			Str("chosen", docs[0].Database).
			Msg("Multiple projects bound to shop")
	}

	return &domain.Project{DBName: docs[0].Database, Shop: shop}, nil
}

func (r *StoreMetadataRepository) loadRaw(ctx context.Context, dbName string) (*ports.Document, error) {
	if dbName == "" {
		return nil, fmt.Errorf("database name is required")
	}
	docs, err := r.store.Query(ctx, dbName, StoreDataCollection, []ports.Filter{ports.Eq(ports.KeyField, MetadataKey)})
	if err != nil {
		return nil, fmt.Errorf("failed to load store metadata: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}
