package application

import (
	"context"

	"archie-builder-credential-broker/internal/infrastructure/metrics"
	"archie-builder-credential-broker/internal/ports"

	"github.com/rs/zerolog"
)

// LifecycleService purges everything a tenant left behind
type LifecycleService struct {
	sessions ports.SessionRepository
	appData  ports.AppDataRepository
	tickets  ports.TicketRepository
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewLifecycleService creates a lifecycle service
func NewLifecycleService(
	sessions ports.SessionRepository,
	appData ports.AppDataRepository,
	tickets ports.TicketRepository,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *LifecycleService {
	return &LifecycleService{
		sessions: sessions,
		appData:  appData,
		tickets:  tickets,
		metrics:  m,
		logger:   logger,
	}
}

// OffboardReport summarises one offboarding run
type OffboardReport struct {
	Shop            string `json:"shop"`
	SessionsDeleted int    `json:"sessionsDeleted"`
	AppDataDeleted  int    `json:"appDataDeleted"`
	TicketsDeleted  int    `json:"ticketsDeleted"`
	Failures        int    `json:"failures"`
}

// Complete reports whether every step succeeded
func (r *OffboardReport) Complete() bool {
	return r.Failures == 0
}

// Offboard deletes the sessions, access requests and tickets of shop.
// It never fails: step errors are logged and counted, and a re-run finishes
// whatever an earlier run left behind.
func (s *LifecycleService) Offboard(ctx context.Context, shop string) *OffboardReport {
	report := &OffboardReport{Shop: shop}
	log := s.logger.With().Str("shop", shop).Logger()

	sessions, err := s.sessions.FindByShop(ctx, shop)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list sessions for offboarding")
		report.Failures++
	} else if len(sessions) > 0 {
		ids := make([]string, 0, len(sessions))
		for _, sess := range sessions {
			ids = append(ids, sess.ID)
		}
		deleted, err := s.sessions.DeleteMany(ctx, ids)
		report.SessionsDeleted = deleted
		if err != nil {
			log.Error().Err(err).Int("deleted", deleted).Int("total", len(ids)).Msg("Failed to delete some sessions")
			report.Failures += len(ids) - deleted
		}
	}

	records, err := s.appData.ListByShop(ctx, shop)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list access requests for offboarding")
		report.Failures++
	} else {
		for _, record := range records {
			if err := s.appData.Delete(ctx, record.Key); err != nil {
				log.Error().Err(err).Str("key", maskSecret(record.Key)).Msg("Failed to delete access request")
				report.Failures++
				continue
			}
			report.AppDataDeleted++
		}
	}

	tickets, err := s.tickets.ListByShop(ctx, shop)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list tickets for offboarding")
		report.Failures++
	} else {
		for _, t := range tickets {
			if err := s.tickets.Delete(ctx, t.Ticket); err != nil {
				log.Error().Err(err).Str("ticket", maskSecret(t.Ticket)).Msg("Failed to delete ticket")
				report.Failures++
				continue
			}
			report.TicketsDeleted++
		}
	}

	result := "complete"
	if !report.Complete() {
		result = "partial"
	}
	s.metrics.Offboarded(result)

	log.Info().
		Int("sessions", report.SessionsDeleted).
		Int("accessRequests", report.AppDataDeleted).
		Int("tickets", report.TicketsDeleted).
		Int("failures", report.Failures).
		Msg("Tenant offboarded")
	return report
}
