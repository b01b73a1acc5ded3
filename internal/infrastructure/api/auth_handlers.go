package api

import (
	"fmt"
	"net/http"

	"archie-builder-credential-broker/internal/application"
	"archie-builder-credential-broker/internal/ports"

	"github.com/rs/zerolog"
)

// oauthInitHandler initiates the install flow
func oauthInitHandler(install *application.InstallService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authURL, err := install.Begin(r.Context(), r.URL.Query().Get("shop"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// oauthCallbackHandler handles the install callback
func oauthCallbackHandler(oauth ports.OAuthClient, install *application.InstallService, apiKey string, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := oauth.VerifyCallback(r); err != nil {
			logger.Warn().Err(err).Msg("Install callback signature rejected")
			writeError(w, logger, err)
			return
		}

		q := r.URL.Query()
		session, err := install.Complete(r.Context(), q.Get("shop"), q.Get("code"), q.Get("state"))
		if err != nil {
			writeError(w, logger, err)
			return
		}

		http.Redirect(w, r, fmt.Sprintf("https://%s/admin/apps/%s", session.Shop, apiKey), http.StatusFound)
	}
}
