package ports

import (
	"context"
	"time"

	"archie-builder-credential-broker/internal/domain"
)

// SessionRepository persists platform sessions
type SessionRepository interface {
	Store(ctx context.Context, session *domain.Session) error
	// Load returns nil, nil when no session has the id
	Load(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	// DeleteMany attempts every id and returns how many were deleted
	DeleteMany(ctx context.Context, ids []string) (int, error)
	FindByShop(ctx context.Context, shop string) ([]*domain.Session, error)
}

// AppDataRepository persists builder access requests
type AppDataRepository interface {
	// Create stores a new record under a freshly minted key and returns the key
	Create(ctx context.Context, record *domain.AppDataRecord) (string, error)
	// GetByKey returns nil, nil when no record has the key
	GetByKey(ctx context.Context, key string) (*domain.AppDataRecord, error)
	// ListByShop returns every record of the shop, newest first
	ListByShop(ctx context.Context, shop string) ([]*domain.AppDataRecord, error)
	Delete(ctx context.Context, key string) error
}

// TicketRepository persists one-time tickets
type TicketRepository interface {
	Save(ctx context.Context, ticket *domain.Ticket) error
	// Get returns nil, nil when the ticket does not exist
	Get(ctx context.Context, ticket string) (*domain.Ticket, error)
	Delete(ctx context.Context, ticket string) error
	ListByShop(ctx context.Context, shop string) ([]*domain.Ticket, error)
	// ListStale returns tickets that are used or expired at now
	ListStale(ctx context.Context, now time.Time) ([]*domain.Ticket, error)
}

// StoreMetadataRepository reads and writes the plan metadata of a project database
type StoreMetadataRepository interface {
	// Load returns nil, nil when the database has no metadata document
	Load(ctx context.Context, dbName string) (*domain.StorePlanMetadata, error)
	SavePlan(ctx context.Context, dbName string, plan domain.Plan) error
}

// ProjectLocator finds the provisioned builder project of a shop
type ProjectLocator interface {
	// FindByShop returns nil, nil when the shop has no project
	FindByShop(ctx context.Context, shop string) (*domain.Project, error)
}
