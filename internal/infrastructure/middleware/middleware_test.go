package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"archie-builder-credential-broker/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestSecurityHeadersMiddleware(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeadersMiddleware()(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-ancestors")
}

func TestInputValidationMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		want        int
	}{
		{name: "json post", method: http.MethodPost, body: `{"key":"k"}`, contentType: "application/json", want: http.StatusNoContent},
		{name: "json with charset", method: http.MethodPost, body: `{}`, contentType: "application/json; charset=utf-8", want: http.StatusNoContent},
		{name: "empty post", method: http.MethodPost, want: http.StatusNoContent},
		{name: "form post", method: http.MethodPost, body: "key=k", contentType: "application/x-www-form-urlencoded", want: http.StatusUnsupportedMediaType},
		{name: "missing content type", method: http.MethodPost, body: `{}`, want: http.StatusUnsupportedMediaType},
		{name: "get ignores content type", method: http.MethodGet, want: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/credential/resolve", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			InputValidationMiddleware(zerolog.Nop())(okHandler).ServeHTTP(rec, req)
			require.Equal(t, tt.want, rec.Code)
		})
	}
}

type stubAuthenticator struct {
	session *domain.AdminSession
	err     error
}

func (s stubAuthenticator) AuthenticateAdmin(r *http.Request) (*domain.AdminSession, error) {
	return s.session, s.err
}

func TestAdminAuthMiddleware(t *testing.T) {
	var seen *domain.AdminSession
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = domain.GetAdminSessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	admin := &domain.AdminSession{Shop: "acme.myshopify.com", AccessToken: "shpat_acme"}
	rec := httptest.NewRecorder()
	AdminAuthMiddleware(stubAuthenticator{session: admin}, zerolog.Nop())(next).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/credential/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, admin, seen)

	rec = httptest.NewRecorder()
	AdminAuthMiddleware(stubAuthenticator{err: domain.ErrUnauthenticated}, zerolog.Nop())(next).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/credential/status", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-Shopify-Retry-Invalid-Session-Request"))

	rec = httptest.NewRecorder()
	AdminAuthMiddleware(stubAuthenticator{err: errors.New("store down")}, zerolog.Nop())(next).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/credential/status", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:53211"
	require.Equal(t, "198.51.100.7", ClientIP(req))

	req.RemoteAddr = "198.51.100.7"
	require.Equal(t, "198.51.100.7", ClientIP(req))
}
