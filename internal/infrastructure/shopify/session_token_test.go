package shopify

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/infrastructure/docstore"
	"archie-builder-credential-broker/internal/infrastructure/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey    = "app-api-key"
	testAPISecret = "app-api-secret"
)

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims SessionTokenClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(now time.Time) SessionTokenClaims {
	return SessionTokenClaims{
		Dest: "https://acme.myshopify.com",
		SID:  "session-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://acme.myshopify.com/admin",
			Subject:   "42",
			Audience:  jwt.ClaimStrings{testAPIKey},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}
}

func newAuthenticator(t *testing.T) (*SessionTokenAuthenticator, *repository.SessionRepository) {
	t.Helper()
	sessions := repository.NewSessionRepository(docstore.NewMemoryStore(), "shopify_app", zerolog.Nop())
	require.NoError(t, sessions.Store(context.Background(), &domain.Session{
		ID:          domain.OfflineSessionID("acme.myshopify.com"),
		Shop:        "acme.myshopify.com",
		AccessToken: "shpat_acme",
	}))
	return NewSessionTokenAuthenticator(testAPIKey, testAPISecret, sessions, zerolog.Nop()), sessions
}

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	NowTimeFunc = func() time.Time { return at }
	t.Cleanup(func() { NowTimeFunc = time.Now })
}

func TestAuthenticateAdmin(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	freezeClock(t, now)
	auth, _ := newAuthenticator(t)

	req := httptest.NewRequest("GET", "/credential/status", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testAPISecret, jwt.SigningMethodHS256, validClaims(now)))

	admin, err := auth.AuthenticateAdmin(req)
	require.NoError(t, err)
	require.Equal(t, "acme.myshopify.com", admin.Shop)
	require.Equal(t, "shpat_acme", admin.AccessToken)
	require.Equal(t, "42", admin.UserID)
}

func TestAuthenticateAdmin_Rejections(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	freezeClock(t, now)

	expired := validClaims(now.Add(-time.Hour))
	foreignAudience := validClaims(now)
	foreignAudience.Audience = jwt.ClaimStrings{"another-app"}
	badDest := validClaims(now)
	badDest.Dest = "https://evil.example.com"
	uninstalled := validClaims(now)
	uninstalled.Dest = "https://ghost.myshopify.com"
	noExpiry := validClaims(now)
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header"},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage", header: "Bearer not-a-jwt"},
		{name: "wrong secret", header: "Bearer " + signToken(t, "other-secret", jwt.SigningMethodHS256, validClaims(now))},
		{name: "wrong algorithm", header: "Bearer " + signToken(t, testAPISecret, jwt.SigningMethodHS512, validClaims(now))},
		{name: "expired", header: "Bearer " + signToken(t, testAPISecret, jwt.SigningMethodHS256, expired)},
		{name: "missing expiry", header: "Bearer " + signToken(t, testAPISecret, jwt.SigningMethodHS256, noExpiry)},
		{name: "foreign audience", header: "Bearer " + signToken(t, testAPISecret, jwt.SigningMethodHS256, foreignAudience)},
		{name: "dest not a shop", header: "Bearer " + signToken(t, testAPISecret, jwt.SigningMethodHS256, badDest)},
		{name: "shop not installed", header: "Bearer " + signToken(t, testAPISecret, jwt.SigningMethodHS256, uninstalled)},
	}

	auth, _ := newAuthenticator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/credential/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			_, err := auth.AuthenticateAdmin(req)
			require.ErrorIs(t, err, domain.ErrUnauthenticated)
		})
	}
}

func TestAuthenticateAdmin_LeewayOnExpiry(t *testing.T) {
	issued := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	token := signToken(t, testAPISecret, jwt.SigningMethodHS256, validClaims(issued))
	auth, _ := newAuthenticator(t)

	freezeClock(t, issued.Add(time.Minute+3*time.Second))
	_, err := auth.ParseToken(token)
	require.NoError(t, err)

	freezeClock(t, issued.Add(time.Minute+10*time.Second))
	_, err = auth.ParseToken(token)
	require.Error(t, err)
}
