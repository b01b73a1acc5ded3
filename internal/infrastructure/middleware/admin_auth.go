package middleware

import (
	"errors"
	"net/http"

	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/ports"

	"github.com/rs/zerolog"
)

// AdminAuthMiddleware requires a valid admin session and puts it in the request context
func AdminAuthMiddleware(auth ports.AdminAuthenticator, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := auth.AuthenticateAdmin(r)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthenticated) {
					// App Bridge fetches a fresh session token and retries
					w.Header().Set("X-Shopify-Retry-Invalid-Session-Request", "1")
					writeJSONError(w, http.StatusUnauthorized, "unauthenticated")
					return
				}
				logger.Error().Err(err).Str("path", r.URL.Path).Msg("Failed to authenticate admin request")
				writeJSONError(w, http.StatusInternalServerError, "internal error")
				return
			}

			ctx := domain.WithAdminSession(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
