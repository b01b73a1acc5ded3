package api

import (
	"encoding/json"
	"net/http"

	"archie-builder-credential-broker/internal/application"
	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/infrastructure/middleware"

	"github.com/rs/zerolog"
)

// configureHandler issues an access key for the authenticated shop
//
//	@Summary	Issue a builder access key
//	@Router		/credential/configure [post]
func configureHandler(credentials *application.CredentialsService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input application.ConfigureInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, logger, err)
			return
		}

		admin := domain.GetAdminSessionFromContext(r.Context())
		result, err := credentials.Configure(r.Context(), admin, input)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// resolveHandler returns the credentials bound to an access key. Public.
//
//	@Summary	Resolve a builder access key
//	@Router		/credential/resolve [post]
func resolveHandler(credentials *application.CredentialsService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Key string `json:"key"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, logger, err)
			return
		}

		result, err := credentials.Resolve(r.Context(), body.Key, middleware.ClientIP(r))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func createTicketHandler(tickets *application.TicketService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			BuilderData json.RawMessage `json:"builderData"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, logger, err)
			return
		}

		admin := domain.GetAdminSessionFromContext(r.Context())
		ticket, err := tickets.CreateTicket(r.Context(), admin, body.BuilderData)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ticket":    ticket.Ticket,
			"expiresAt": ticket.ExpiresAt,
		})
	}
}

func exchangeTicketHandler(tickets *application.TicketService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Ticket string `json:"ticket"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, logger, err)
			return
		}

		bundle, err := tickets.ExchangeTicket(r.Context(), body.Ticket)
		if err != nil {
			logger.Info().Err(err).Str("ip", middleware.ClientIP(r)).Msg("Ticket exchange refused")
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, bundle)
	}
}

func statusHandler(plans *application.PlanService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin := domain.GetAdminSessionFromContext(r.Context())
		if admin == nil {
			writeError(w, logger, domain.ErrUnauthenticated)
			return
		}

		status, err := plans.Status(r.Context(), admin)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}
