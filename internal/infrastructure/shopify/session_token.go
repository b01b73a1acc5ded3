package shopify

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// NowTimeFunc is the clock used to validate session tokens
var NowTimeFunc = time.Now

// SessionTokenClaims are the claims of an App Bridge session token
type SessionTokenClaims struct {
	Dest string `json:"dest"`
	SID  string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// SessionTokenAuthenticator authenticates embedded admin requests by their
// App Bridge session token and loads the shop's offline session
type SessionTokenAuthenticator struct {
	apiKey    string
	apiSecret []byte
	sessions  ports.SessionRepository
	logger    zerolog.Logger
}

// NewSessionTokenAuthenticator creates an authenticator for tokens issued to apiKey
func NewSessionTokenAuthenticator(apiKey, apiSecret string, sessions ports.SessionRepository, logger zerolog.Logger) *SessionTokenAuthenticator {
	return &SessionTokenAuthenticator{
		apiKey:    apiKey,
		apiSecret: []byte(apiSecret),
		sessions:  sessions,
		logger:    logger,
	}
}

var _ ports.AdminAuthenticator = (*SessionTokenAuthenticator)(nil)

// AuthenticateAdmin returns domain.ErrUnauthenticated unless the request
// carries a valid session token for an installed shop
func (a *SessionTokenAuthenticator) AuthenticateAdmin(r *http.Request) (*domain.AdminSession, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return nil, domain.ErrUnauthenticated
	}

	claims, err := a.ParseToken(raw)
	if err != nil {
		a.logger.Debug().Err(err).Msg("Session token rejected")
		return nil, domain.ErrUnauthenticated
	}

	shop, err := shopFromDest(claims.Dest)
	if err != nil {
		a.logger.Debug().Err(err).Msg("Session token destination rejected")
		return nil, domain.ErrUnauthenticated
	}

	session, err := a.sessions.Load(r.Context(), domain.OfflineSessionID(shop))
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil || !session.IsActive(NowTimeFunc()) {
		a.logger.Info().Str("shop", shop).Msg("Session token for shop without an active session")
		return nil, domain.ErrUnauthenticated
	}

	return &domain.AdminSession{
		Shop:        shop,
		AccessToken: session.AccessToken,
		UserID:      claims.Subject,
	}, nil
}

// ParseToken validates signature, audience and lifetime of a session token
func (a *SessionTokenAuthenticator) ParseToken(raw string) (*SessionTokenClaims, error) {
	claims := &SessionTokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return a.apiSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(a.apiKey),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5*time.Second),
		jwt.WithTimeFunc(NowTimeFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session token: %w", err)
	}
	return claims, nil
}

func shopFromDest(dest string) (string, error) {
	u, err := url.Parse(dest)
	if err != nil {
		return "", fmt.Errorf("invalid dest claim: %w", err)
	}
	shop, ok := domain.NormalizeShop(u.Host)
	if !ok {
		return "", fmt.Errorf("dest %q is not a shop domain", dest)
	}
	return shop, nil
}
