package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/infrastructure/metrics"
	"archie-builder-credential-broker/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultTicketTTL is how long a ticket stays exchangeable
const DefaultTicketTTL = 5 * time.Minute

// TicketService runs the one-time ticket exchange
type TicketService struct {
	tickets  ports.TicketRepository
	sessions ports.SessionRepository
	locker   ports.Locker
	apiKey   string
	ttl      time.Duration
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewTicketService creates a ticket service. A non-positive ttl means DefaultTicketTTL.
func NewTicketService(
	tickets ports.TicketRepository,
	sessions ports.SessionRepository,
	locker ports.Locker,
	apiKey string,
	ttl time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *TicketService {
	if ttl <= 0 {
		ttl = DefaultTicketTTL
	}
	return &TicketService{
		tickets:  tickets,
		sessions: sessions,
		locker:   locker,
		apiKey:   apiKey,
		ttl:      ttl,
		metrics:  m,
		logger:   logger,
	}
}

// CreateTicket mints an unused ticket for the authenticated shop
func (s *TicketService) CreateTicket(ctx context.Context, admin *domain.AdminSession, builderData json.RawMessage) (*domain.Ticket, error) {
	if admin == nil || admin.Shop == "" {
		return nil, domain.ErrUnauthenticated
	}

	ts := now()
	ticket := &domain.Ticket{
		Ticket:      uuid.NewString(),
		Shop:        admin.Shop,
		Used:        false,
		CreatedAt:   ts,
		ExpiresAt:   ts.Add(s.ttl),
		BuilderData: builderData,
	}

	if err := s.tickets.Save(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	s.logger.Info().
		Str("shop", admin.Shop).
		Str("ticket", maskSecret(ticket.Ticket)).
		Time("expiresAt", ticket.ExpiresAt).
		Msg("Ticket issued")
	return ticket, nil
}

// ExchangeTicket consumes a ticket and returns the credentials bound to it.
// Absent and used tickets fail with domain.ErrInvalidCredential; expired ones
// are deleted and fail with domain.ErrExpired.
func (s *TicketService) ExchangeTicket(ctx context.Context, value string) (bundle *domain.CredentialBundle, err error) {
	value = strings.TrimSpace(value)

	defer func() {
		outcome := "success"
		switch {
		case errors.Is(err, domain.ErrMissingField):
			outcome = "missing_ticket"
		case errors.Is(err, domain.ErrExpired):
			outcome = "expired"
		case errors.Is(err, domain.ErrInvalidCredential):
			outcome = "invalid_ticket"
		case err != nil:
			outcome = "error"
		}
		s.metrics.TicketExchange(outcome)
	}()

	if value == "" {
		return nil, &domain.MissingFieldError{Field: "ticket"}
	}

	release, err := s.locker.Acquire(ctx, "ticket:"+value)
	if errors.Is(err, domain.ErrLockHeld) {
		s.logger.Warn().Str("ticket", maskSecret(value)).Msg("Concurrent ticket exchange rejected")
		return nil, domain.ErrInvalidCredential
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock ticket: %w", err)
	}
	defer release()

	ticket, err := s.tickets.Get(ctx, value)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket: %w", err)
	}
	if ticket == nil || ticket.Used {
		return nil, domain.ErrInvalidCredential
	}

	if ticket.IsExpired(now()) {
		if err := s.tickets.Delete(ctx, value); err != nil {
			s.logger.Error().Err(err).Str("ticket", maskSecret(value)).Msg("Failed to delete expired ticket")
		}
		return nil, domain.ErrExpired
	}

	session, err := s.sessions.Load(ctx, domain.OfflineSessionID(ticket.Shop))
	if err != nil {
		return nil, fmt.Errorf("failed to load shop session: %w", err)
	}
	if session == nil || !session.IsActive(now()) {
		s.logger.Warn().Str("shop", ticket.Shop).Msg("Ticket presented for shop without an active session")
		return nil, domain.ErrInvalidCredential
	}

	ticket.Used = true
	if err := s.tickets.Save(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to mark ticket used: %w", err)
	}

	s.logger.Info().Str("shop", ticket.Shop).Str("ticket", maskSecret(value)).Msg("Ticket exchanged")

	return &domain.CredentialBundle{
		Shop:        ticket.Shop,
		AccessToken: session.AccessToken,
		APIKey:      s.apiKey,
		BuilderData: ticket.BuilderData,
	}, nil
}

// SweepTickets deletes used and expired tickets and returns how many were removed
func (s *TicketService) SweepTickets(ctx context.Context) (int, error) {
	stale, err := s.tickets.ListStale(ctx, now())
	if err != nil {
		return 0, fmt.Errorf("failed to list stale tickets: %w", err)
	}

	removed := 0
	var errs []error
	for _, t := range stale {
		if err := s.tickets.Delete(ctx, t.Ticket); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	s.metrics.TicketsSwept(removed)
	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Msg("Stale tickets swept")
	}
	return removed, errors.Join(errs...)
}

// RunJanitor sweeps tickets every interval until ctx is cancelled
func (s *TicketService) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Ticket janitor stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepTickets(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("Ticket sweep failed")
			}
		}
	}
}
