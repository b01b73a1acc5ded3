package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/infrastructure/repository/entity"
	"archie-builder-credential-broker/internal/ports"

	"github.com/rs/zerolog"
)

// SessionRepository stores platform sessions in the app database
type SessionRepository struct {
	store    ports.DocumentStore
	database string
	logger   zerolog.Logger
}

// NewSessionRepository creates a document store backed session repository
func NewSessionRepository(store ports.DocumentStore, database string, logger zerolog.Logger) *SessionRepository {
	return &SessionRepository{
		store:    store,
		database: database,
		logger:   logger,
	}
}

var _ ports.SessionRepository = (*SessionRepository)(nil)

// Store upserts a session. The id is only used as the lookup key.
func (r *SessionRepository) Store(ctx context.Context, session *domain.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if !session.IsOnline && session.UserIdentity != nil {
		r.logger.Debug().Str("sessionId", session.ID).Msg("Dropping user identity from offline session")
	}

	_, err := r.store.WriteByKey(ctx, r.database, SessionCollection, ports.WriteDocument{
		Key:   session.ID,
		Value: entity.SessionDocFromDomain(session),
	}, ports.WriteOptions{})
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Load retrieves a session by id
func (r *SessionRepository) Load(ctx context.Context, id string) (*domain.Session, error) {
	docs, err := r.store.Query(ctx, r.database, SessionCollection, []ports.Filter{ports.Eq(ports.KeyField, id)})
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	var doc entity.SessionDoc
	if err := docs[0].Decode(&doc); err != nil {
		return nil, domain.Upstream("load session", err)
	}
	return doc.ToDomain(docs[0].Key), nil
}

// Delete removes a session by id
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.store.WriteByKey(ctx, r.database, SessionCollection, ports.WriteDocument{Key: id}, ports.WriteOptions{Delete: true})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteMany deletes sessions concurrently. Every id is attempted; failures are
// logged and joined into the returned error alongside the count that succeeded.
func (r *SessionRepository) DeleteMany(ctx context.Context, ids []string) (int, error) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		deleted int
		errs    []error
	)

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			err := r.Delete(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger.Warn().Err(err).Str("sessionId", id).Msg("Failed to delete session")
				errs = append(errs, fmt.Errorf("session %s: %w", id, err))
				return
			}
			deleted++
		}(id)
	}
	wg.Wait()

	return deleted, errors.Join(errs...)
}

// FindByShop lists every session of a shop
func (r *SessionRepository) FindByShop(ctx context.Context, shop string) ([]*domain.Session, error) {
	docs, err := r.store.Query(ctx, r.database, SessionCollection, []ports.Filter{ports.Eq("shop", shop)})
	if err != nil {
		return nil, fmt.Errorf("failed to find sessions: %w", err)
	}

	sessions := make([]*domain.Session, 0, len(docs))
	for _, d := range docs {
		var doc entity.SessionDoc
		if err := d.Decode(&doc); err != nil {
			return nil, domain.Upstream("find sessions", err)
		}
		sessions = append(sessions, doc.ToDomain(d.Key))
	}
	return sessions, nil
}
