package api

import (
	"fmt"
	"net/http"

	"archie-builder-credential-broker/internal/application"
	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/ports"

	"github.com/rs/zerolog"
)

func upgradeRequestHandler(plans *application.PlanService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Plan string `json:"plan"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, logger, err)
			return
		}
		if body.Plan == "" {
			writeError(w, logger, &domain.MissingFieldError{Field: "plan"})
			return
		}

		admin := domain.GetAdminSessionFromContext(r.Context())
		if admin == nil {
			writeError(w, logger, domain.ErrUnauthenticated)
			return
		}

		outcome := plans.RequestUpgrade(r.Context(), admin, body.Plan)
		if outcome.Failure != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":   outcome.Failure.Message,
				"details": outcome.Failure.Details,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"confirmationUrl": outcome.Redirect.URL})
	}
}

// billingCallbackHandler receives the merchant back from charge approval. The
// plan hint is trusted only with a valid unexpired signature and, for paid
// plans, an active charge.
func billingCallbackHandler(plans *application.PlanService, sessions ports.SessionRepository, apiKey string, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		shop, ok := domain.NormalizeShop(q.Get("shop"))
		if !ok {
			writeError(w, logger, &domain.MissingFieldError{Field: "shop"})
			return
		}

		session, err := sessions.Load(r.Context(), domain.OfflineSessionID(shop))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if session == nil {
			writeError(w, logger, domain.ErrUnauthenticated)
			return
		}

		res, err := plans.ConfirmCallback(r.Context(), application.CallbackInput{
			Shop:        shop,
			AccessToken: session.AccessToken,
			Plan:        q.Get("plan"),
			Expires:     q.Get("exp"),
			Signature:   q.Get("sig"),
			ChargeID:    q.Get("charge_id"),
		})
		if err != nil {
			writeError(w, logger, err)
			return
		}

		logger.Info().
			Str("shop", shop).
			Str("plan", string(res.Plan)).
			Str("source", string(res.Source)).
			Str("chargeId", q.Get("charge_id")).
			Msg("Billing callback processed")

		http.Redirect(w, r, fmt.Sprintf("https://%s/admin/apps/%s", shop, apiKey), http.StatusFound)
	}
}
