package api

import (
	"net/http"

	"archie-builder-credential-broker/internal/application"
	"archie-builder-credential-broker/internal/ports"

	"github.com/rs/zerolog"
)

// webhookHandler verifies a delivery and dispatches it. Handler failures
// return 500 so the platform retries.
func webhookHandler(verifier ports.WebhookAuthenticator, dispatcher *application.WebhookDispatcher, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		event, err := verifier.AuthenticateWebhook(r)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		if err := dispatcher.Dispatch(r.Context(), event); err != nil {
			logger.Error().Err(err).Str("topic", event.Topic).Str("shop", event.Shop).Msg("Failed to dispatch webhook event")
			http.Error(w, "Failed to process webhook event", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"received": "true"})
	}
}
