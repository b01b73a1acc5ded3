package repository

import (
	"context"
	"fmt"
	"time"

	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/infrastructure/repository/entity"
	"archie-builder-credential-broker/internal/ports"
)

// TicketRepository stores one-time tickets in the app database
type TicketRepository struct {
	store    ports.DocumentStore
	database string
}

// NewTicketRepository creates a document store backed ticket repository
func NewTicketRepository(store ports.DocumentStore, database string) *TicketRepository {
	return &TicketRepository{
		store:    store,
		database: database,
	}
}

var _ ports.TicketRepository = (*TicketRepository)(nil)

// Save upserts a ticket under its own value as key
func (r *TicketRepository) Save(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.Ticket == "" {
		return fmt.Errorf("ticket value is required")
	}
	_, err := r.store.WriteByKey(ctx, r.database, TicketCollection, ports.WriteDocument{
		Key:   ticket.Ticket,
		Value: entity.TicketDocFromDomain(ticket),
	}, ports.WriteOptions{})
	if err != nil {
		return fmt.Errorf("failed to save ticket: %w", err)
	}
	return nil
}

// Get retrieves a ticket
func (r *TicketRepository) Get(ctx context.Context, ticket string) (*domain.Ticket, error) {
	docs, err := r.store.Query(ctx, r.database, TicketCollection, []ports.Filter{ports.Eq(ports.KeyField, ticket)})
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return decodeTicket(docs[0])
}

// Delete removes a ticket
func (r *TicketRepository) Delete(ctx context.Context, ticket string) error {
	_, err := r.store.WriteByKey(ctx, r.database, TicketCollection, ports.WriteDocument{Key: ticket}, ports.WriteOptions{Delete: true})
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	return nil
}

// ListByShop returns every ticket of a shop
func (r *TicketRepository) ListByShop(ctx context.Context, shop string) ([]*domain.Ticket, error) {
	return r.list(ctx, []ports.Filter{ports.Eq("shop", shop)})
}

// ListStale returns used tickets and tickets that expired before now
func (r *TicketRepository) ListStale(ctx context.Context, now time.Time) ([]*domain.Ticket, error) {
	used, err := r.list(ctx, []ports.Filter{ports.Eq("used", true)})
	if err != nil {
		return nil, err
	}
	expired, err := r.list(ctx, []ports.Filter{
		{Field: "expiresAtMillis", Operator: ports.OpLess, Value: now.UnixMilli()},
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(used))
	stale := make([]*domain.Ticket, 0, len(used)+len(expired))
	for _, t := range append(used, expired...) {
		if _, ok := seen[t.Ticket]; ok {
			continue
		}
		seen[t.Ticket] = struct{}{}
		stale = append(stale, t)
	}
	return stale, nil
}

func (r *TicketRepository) list(ctx context.Context, filters []ports.Filter) ([]*domain.Ticket, error) {
	docs, err := r.store.Query(ctx, r.database, TicketCollection, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	tickets := make([]*domain.Ticket, 0, len(docs))
	for _, d := range docs {
		t, err := decodeTicket(d)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

func decodeTicket(d ports.Document) (*domain.Ticket, error) {
	var doc entity.TicketDoc
	if err := d.Decode(&doc); err != nil {
		return nil, domain.Upstream("decode ticket", err)
	}
	return doc.ToDomain(d.Key), nil
}
